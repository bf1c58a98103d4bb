package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// LoadOptions controls which sources Load treats as mandatory.
type LoadOptions struct {
	// Dir is the directory holding .env files and the conf/ folder.
	Dir string
	// RequireSource fails Load when neither .env nor conf/config.toml exist.
	RequireSource bool
}

func mirrorEnvCase() {
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		k, v := kv[:i], kv[i+1:]
		_ = os.Setenv(strings.ToUpper(k), v)
		_ = os.Setenv(strings.ToLower(k), v)
	}
}

func loadDotenvIfExists(filename string, overload bool) (bool, error) {
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if overload {
		return true, godotenv.Overload(filename)
	}
	return true, godotenv.Load(filename)
}

func readConfigIfExists(path string, merge bool) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	viper.SetConfigFile(path)
	var err error
	if merge {
		err = viper.MergeInConfig()
	} else {
		err = viper.ReadInConfig()
	}
	if err == nil {
		return true, nil
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

// DetectProfile returns the lower-cased APP_ENV value, "dev" when unset.
func DetectProfile() string {
	for _, k := range []string{"APP_ENV", "app_env"} {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return "dev"
}

// Load reads .env, .<profile>.env, conf/config.toml and
// conf/<profile>.config.toml in that order, then lets the environment
// override any key using "__" as the separator ("mapping.replay_rate" is
// read from MAPPING__REPLAY_RATE).
func Load(opts LoadOptions) error {
	join := func(name string) string {
		return filepath.Join(opts.Dir, name)
	}

	setDefaults()

	envFound, err := loadDotenvIfExists(join(".env"), false)
	if err != nil {
		return errors.Wrap(err, "failed to load .env")
	}
	if envFound {
		mirrorEnvCase()
	}
	profile := DetectProfile()

	pfFound, err := loadDotenvIfExists(join("."+profile+".env"), true)
	if err != nil {
		return errors.Wrapf(err, "failed to load .%s.env", profile)
	}
	if pfFound {
		mirrorEnvCase()
	}

	cfgFound, err := readConfigIfExists(join("conf/config.toml"), false)
	if err != nil {
		return errors.Wrap(err, "failed to read conf/config.toml")
	}

	if opts.RequireSource && !envFound && !cfgFound {
		return fmt.Errorf("no configuration sources found: missing both .env and conf/config.toml")
	}

	if _, err := readConfigIfExists(join("conf/"+profile+".config.toml"), true); err != nil {
		return errors.Wrapf(err, "failed to read conf/%s.config.toml", profile)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// ROS tooling exports these without the namespaced prefix.
	_ = viper.BindEnv(RosAmentPrefixPath, "ROS__AMENT_PREFIX_PATH", "AMENT_PREFIX_PATH")
	_ = viper.BindEnv(RosIsaacRosWS, "ROS__ISAAC_ROS_WS", "ISAAC_ROS_WS")

	return nil
}
