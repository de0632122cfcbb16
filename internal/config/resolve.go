package config

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// ResolveValue expands a secret reference in a provider's api_key or
// base_url. Supported forms are op://vault/item/field (read with the
// 1Password CLI), $(command) and ${VAR} or $VAR. Anything else is returned
// trimmed.
func ResolveValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", nil
	case strings.HasPrefix(value, "op://"):
		args, err := onePasswordArgs(value)
		if err != nil {
			return "", err
		}
		return runResolver("1password", "op", args...)
	case strings.HasPrefix(value, "$(") && strings.HasSuffix(value, ")"):
		return runResolver("command", "sh", "-c", value[2:len(value)-1])
	}
	return expandEnv(value), nil
}

// onePasswordArgs turns op://vault/item/field?account=x into `op read`
// arguments.
func onePasswordArgs(ref string) ([]string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("1password: invalid reference %s: %w", ref, err)
	}
	if u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return nil, fmt.Errorf("1password: reference %s needs vault/item/field", ref)
	}
	args := []string{"read", "op://" + u.Host + u.Path}
	if account := u.Query().Get("account"); account != "" {
		args = append(args, "--account", account)
	}
	return args, nil
}

func runResolver(kind, name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %s", kind, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	value := strings.TrimSpace(string(output))
	if value == "" {
		return "", fmt.Errorf("%s: resolved to an empty value", kind)
	}
	return value, nil
}
