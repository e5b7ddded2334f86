package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgservicefile"
)

// ApplyService loads settings for the named service from the connection
// service file ($PGSERVICEFILE or ~/.pg_service.conf) into c. Explicitly
// set fields win over service-file values, matching how service files
// interact with other parameter sources.
func (c *Config) ApplyService(name string) error {
	path := os.Getenv("PGSERVICEFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		path = filepath.Join(home, ".pg_service.conf")
	}
	return c.applyServiceFile(path, name)
}

func (c *Config) applyServiceFile(path, name string) error {
	sf, err := pgservicefile.ReadServicefile(path)
	if err != nil {
		return fmt.Errorf("read service file %s: %w", path, err)
	}
	svc, err := sf.GetService(name)
	if err != nil {
		return fmt.Errorf("service %q not found in %s", name, path)
	}

	settings := svc.Settings
	if len(c.Hosts) == 0 && settings["host"] != "" {
		hostPart := settings["host"]
		if port := settings["port"]; port != "" {
			if strings.Contains(hostPart, ":") {
				hostPart = "[" + hostPart + "]"
			}
			hostPart += ":" + port
		}
		specs, err := ParseHosts(hostPart)
		if err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		c.Hosts = specs
	}
	if c.User == "" {
		c.User = settings["user"]
	}
	if c.Password == "" {
		c.Password = settings["password"]
	}
	if c.Database == "" {
		c.Database = settings["dbname"]
	}
	if c.SSLMode == "" {
		c.SSLMode = settings["sslmode"]
	}
	if c.AppName == "" {
		c.AppName = settings["application_name"]
	}
	if c.ConnectTimeout == 0 && settings["connect_timeout"] != "" {
		secs, err := strconv.Atoi(settings["connect_timeout"])
		if err != nil {
			return fmt.Errorf("service %q: invalid connect_timeout %q", name, settings["connect_timeout"])
		}
		c.ConnectTimeout = time.Duration(secs) * time.Second
	}
	return nil
}
