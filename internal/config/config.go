// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

var validate10 = validator.New()

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("DIRSYNC_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	c.Sync = LoadSyncConfig()

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	return c, validate(c)
}

// LoadSyncConfig reads the IdP Admin Client / Scheduled Driver settings
// from their dedicated environment variables. These sit outside the
// TOML+DIRSYNC_CONFIG_JSON layering the rest of Config uses because the
// external interface they implement is specified in terms of discrete
// env vars, not a config file.
func LoadSyncConfig() Sync {
	replicaCount, _ := strconv.Atoi(os.Getenv("SYNC_REPLICA_COUNT"))
	if replicaCount <= 0 {
		replicaCount = 1
	}

	replicaIndex, _ := strconv.Atoi(os.Getenv("SYNC_REPLICA_INDEX"))

	batchSize, _ := strconv.Atoi(os.Getenv("SYNC_BATCH_SIZE"))
	if batchSize <= 0 {
		batchSize = 100
	}

	var avatarMarkers []string

	if raw := os.Getenv("SYNC_AVATAR_MARKERS"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				avatarMarkers = append(avatarMarkers, m)
			}
		}
	}

	return Sync{
		Enabled:       os.Getenv("OIDC_SYNC_ENABLED") == "true",
		AdminURL:      os.Getenv("OIDC_SYNC_ADMIN_URL"),
		Realm:         os.Getenv("OIDC_SYNC_REALM"),
		ClientID:      os.Getenv("OIDC_SYNC_CLIENT_ID"),
		ClientSecret:  os.Getenv("OIDC_SYNC_CLIENT_SECRET"),
		ReplicaCount:  replicaCount,
		ReplicaIndex:  replicaIndex,
		BatchSize:     batchSize,
		AvatarMarkers: avatarMarkers,
	}
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the config fields that carry `validate` struct tags
// (Webserver's port/url, Sync's admin URL/realm when sync is enabled).
// Defaults are applied by ReadConfig, not here.
func validate(c Config) error {
	invalidErrMessage := "invalid config"

	if err := validate10.Struct(c.Webserver); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	if err := validate10.Struct(c.Sync); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	return nil
}
