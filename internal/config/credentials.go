package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultSection is the creds.conf section holding the destination login.
const DefaultSection = "analytics"

// Credentials identify the destination store. Hostname may carry a port.
type Credentials struct {
	Username string
	Hostname string
	Password string
	Database string
}

// LoadCredentials reads the key-value credentials file at path. Every key of
// Credentials must be present in section; password may be empty.
func LoadCredentials(path, section string) (*Credentials, error) {
	// Passwords may contain '#' or ';', so only whole-line comments count.
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, fmt.Errorf("load credentials %s: %w", path, err)
	}

	sec, err := file.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("credentials %s: %w", path, err)
	}

	var missing []string
	get := func(key string) string {
		if !sec.HasKey(key) {
			missing = append(missing, key)
			return ""
		}
		return sec.Key(key).String()
	}

	creds := &Credentials{
		Username: get("username"),
		Hostname: get("hostname"),
		Password: get("password"),
		Database: get("database"),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("credentials %s [%s]: missing %s", path, section, strings.Join(missing, ", "))
	}
	return creds, nil
}
