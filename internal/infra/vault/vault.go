// Package vault stores session secrets outside the database: in the macOS
// keychain through the generic-password interface, or in a JSON file with
// owner-only permissions under the config directory.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Backends selectable via configuration.
const (
	BackendAuto     = "auto"
	BackendKeychain = "keychain"
	BackendFile     = "file"
)

// Vault stores one secret per provider name.
type Vault struct {
	backend     string
	serviceName string
	filePath    string
}

// New creates a vault. serviceName namespaces keychain entries; filePath is
// where the file backend persists (resolved from the config dir when empty).
func New(backend, serviceName, filePath string) *Vault {
	normalized := strings.ToLower(strings.TrimSpace(backend))
	if normalized == "" {
		normalized = BackendAuto
	}
	if filePath == "" {
		filePath = defaultSessionStore()
	}
	return &Vault{backend: normalized, serviceName: serviceName, filePath: filePath}
}

// Set stores the secret for a provider.
func (v *Vault) Set(provider, secret string) error {
	if v.useKeychain() {
		return v.setKeychain(provider, secret)
	}
	return v.setFile(provider, secret)
}

// Get returns the secret for a provider, or "" when absent.
func (v *Vault) Get(provider string) (string, error) {
	if v.useKeychain() {
		return v.getKeychain(provider)
	}
	return v.getFile(provider)
}

// Delete removes the secret for a provider. Missing entries are not an error.
func (v *Vault) Delete(provider string) error {
	if v.useKeychain() {
		return v.deleteKeychain(provider)
	}
	return v.deleteFile(provider)
}

func (v *Vault) useKeychain() bool {
	switch v.backend {
	case BackendKeychain:
		return true
	case BackendFile:
		return false
	}
	return runtime.GOOS == "darwin"
}

func (v *Vault) account(provider string) string {
	return v.serviceName + ":" + provider
}

func (v *Vault) setKeychain(provider, secret string) error {
	cmd := exec.Command("security", "add-generic-password",
		"-a", v.account(provider), "-s", v.serviceName, "-w", secret, "-U")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("Set: security add-generic-password: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (v *Vault) getKeychain(provider string) (string, error) {
	cmd := exec.Command("security", "find-generic-password",
		"-a", v.account(provider), "-s", v.serviceName, "-w")
	out, err := cmd.Output()
	if err != nil {
		// The keychain reports missing items as a non-zero exit.
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

func (v *Vault) deleteKeychain(provider string) error {
	cmd := exec.Command("security", "delete-generic-password",
		"-a", v.account(provider), "-s", v.serviceName)
	_ = cmd.Run()
	return nil
}

func (v *Vault) setFile(provider, secret string) error {
	payload, err := v.loadFile()
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	payload[provider] = secret
	return v.writeFile(payload)
}

func (v *Vault) getFile(provider string) (string, error) {
	payload, err := v.loadFile()
	if err != nil {
		return "", fmt.Errorf("Get: %w", err)
	}
	return strings.TrimSpace(payload[provider]), nil
}

func (v *Vault) deleteFile(provider string) error {
	payload, err := v.loadFile()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if _, ok := payload[provider]; !ok {
		return nil
	}
	delete(payload, provider)
	return v.writeFile(payload)
}

func (v *Vault) loadFile() (map[string]string, error) {
	data, err := os.ReadFile(v.filePath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}
	payload := map[string]string{}
	if err := json.Unmarshal(data, &payload); err != nil {
		// A corrupt store is treated as empty rather than blocking auth.
		return map[string]string{}, nil
	}
	return payload, nil
}

func (v *Vault) writeFile(payload map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(v.filePath), 0o700); err != nil {
		return fmt.Errorf("write session store: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("write session store: marshal: %w", err)
	}
	if err := os.WriteFile(v.filePath, data, 0o600); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return os.Chmod(v.filePath, 0o600)
}

func defaultSessionStore() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "cerebro", "sessions.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "cerebro", "sessions.json")
}
