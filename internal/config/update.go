package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteExample writes a commented starter config to path. It refuses to
// overwrite an existing file unless force is set.
func WriteExample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{exampleNode()}}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	// Credentials may end up in here.
	if err := os.WriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func exampleNode() *yaml.Node {
	doc := mapping()
	add(doc, "version", scalar(fmt.Sprint(CurrentConfigVersion), "!!int"),
		"ssh2shell config. HOST, PORT, USER_NAME, PASSWORD, PRIVATE_KEY and\nPASSPHRASE in the environment override the server section.")

	server := mapping()
	add(server, "host", str("example.com"), "Hostname, IP, or ~/.ssh/config alias.")
	add(server, "port", scalar("22", "!!int"), "")
	add(server, "user_name", str("deploy"), "")
	add(server, "password", str("${DEPLOY_PASSWORD}"), "${NAME} is replaced from your local environment.")
	add(doc, "server", server, "")

	commands := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, c := range []string{"`Session started`", "msg:Checking disk space", "df -h", "uptime"} {
		commands.Content = append(commands.Content, str(c))
	}
	add(doc, "commands", commands,
		"Run in order in one shell. `text` goes into the transcript,\nmsg:text is printed locally. Neither is sent to the host.")

	sh := mapping()
	add(sh, "idle_timeout", str("5s"), "")
	add(sh, "continue_on_timeout", scalar("false", "!!bool"), "")
	add(sh, "strip_ansi", scalar("true", "!!bool"), "")
	add(doc, "shell", sh, "")

	output := mapping()
	logs := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{str("session.log")}}
	add(output, "logs", logs, "Files the raw session output is appended to.")
	add(output, "transcript_dir", str("~/.local/state/ssh2shell"), "")
	add(doc, "output", output, "")

	return doc
}

// AddCommand appends a command to the top-level commands list, keeping the
// rest of the file and its comments as they are. Existing commands are left alone.
func AddCommand(configPath, command string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	commandsNode := findMapValue(docNode, "commands")
	if commandsNode == nil {
		commandsNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		docNode.Content = append(docNode.Content, str("commands"), commandsNode)
	}
	if commandsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("'commands' must be a list")
	}

	for _, item := range commandsNode.Content {
		if item.Kind == yaml.ScalarNode && item.Value == command {
			return nil
		}
	}
	commandsNode.Content = append(commandsNode.Content, str(command))

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	info, err := os.Stat(configPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(buf.String()), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return node.Content[i+1]
		}
	}

	return nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalar(value, tag string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func str(value string) *yaml.Node {
	return scalar(value, "!!str")
}

func add(m *yaml.Node, key string, value *yaml.Node, comment string) {
	k := str(key)
	if comment != "" {
		k.HeadComment = "# " + strings.ReplaceAll(comment, "\n", "\n# ")
	}
	m.Content = append(m.Content, k, value)
}
