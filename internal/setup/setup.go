// Package setup registers the standalone MCP server with desktop MCP clients
// and reports whether that registration is usable.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerName is the key the server is registered under.
const ServerName = "ontani-diagnosis"

// ClientConfig is the MCP client configuration file layout. Unknown top-level
// keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry is one registered MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls registration.
type Options struct {
	BinaryPath string
	DataDir    string
	SeedFile   string
	LogLevel   string
}

// Status describes the current registration.
type Status struct {
	ConfigPath string
	Registered bool
	Entry      ServerEntry
	Issues     []string
}

// DefaultClientConfigPath returns the desktop client's config file location.
func DefaultClientConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LoadClientConfig reads a client config. A missing file yields an empty one.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the config, creating its directory.
func (c *ClientConfig) Save(path string) error {
	out := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry in the config at path.
func Register(path string, opts Options) (ServerEntry, error) {
	binary := opts.BinaryPath
	if binary == "" {
		found, err := FindBinary()
		if err != nil {
			return ServerEntry{}, err
		}
		binary = found
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return ServerEntry{}, err
	}

	entry := ServerEntry{Command: binary, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["ONTANI_DATA_DIR"] = opts.DataDir
	}
	if opts.SeedFile != "" {
		entry.Env["ONTANI_SEED_FILE"] = opts.SeedFile
	}
	if opts.LogLevel != "" {
		entry.Env["ONTANI_LOG_LEVEL"] = opts.LogLevel
	}
	if len(entry.Env) == 0 {
		entry.Env = nil
	}

	cfg.MCPServers[ServerName] = entry
	if err := cfg.Save(path); err != nil {
		return ServerEntry{}, err
	}
	return entry, nil
}

// Unregister removes the server entry. It reports whether one existed.
func Unregister(path string) (bool, error) {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, cfg.Save(path)
}

// Inspect reports the registration found at path and any problems with it.
func Inspect(path string) (*Status, error) {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path, Issues: []string{}}
	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered", ServerName))
		return status, nil
	}
	status.Registered = true
	status.Entry = entry

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case info.Mode()&0111 == 0 && runtime.GOOS != "windows":
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}

	if seed := entry.Env["ONTANI_SEED_FILE"]; seed != "" {
		if _, err := os.Stat(seed); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("seed file not found: %s", seed))
		}
	}

	sort.Strings(status.Issues)
	return status, nil
}

// FindBinary looks for the standalone MCP server binary on PATH and in the
// usual build locations.
func FindBinary() (string, error) {
	const name = "ontani-mcp-lite"

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	locations := []string{"./" + name, "./bin/" + name, "./build/" + name}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".local", "bin", name))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", fmt.Errorf("binary %q not found in common locations", name)
}
