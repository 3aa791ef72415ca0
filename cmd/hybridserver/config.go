package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hybridserver/internal/config"
)

var (
	configFormat   string
	configShowDiff bool
	configFile     string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect server configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show the effective configuration",
	Long: `Display the configuration the server would start with after the file and
HYBRID_* environment overrides are applied. Passwords are masked.

Examples:
  hybridserver config show
  hybridserver config show config.properties --format yaml
  hybridserver config show --format toml --diff`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Run: func(cmd *cobra.Command, args []string) {
		printEnvVars(cmd.OutOrStdout())
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (human, json, yaml, toml)")
	configShowCmd.Flags().BoolVar(&configShowDiff, "diff", false, "Only show non-default values")
	configShowCmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" && len(args) > 0 {
		path = args[0]
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return writeConfig(cmd.OutOrStdout(), cfg.Redacted(), configFormat, configShowDiff)
}

func writeConfig(w io.Writer, cfg *config.Config, format string, diffOnly bool) error {
	current, err := configToMap(cfg)
	if err != nil {
		return err
	}
	defaults, err := configToMap(config.DefaultConfig())
	if err != nil {
		return err
	}
	if diffOnly {
		current = computeDiff(current, defaults)
	}

	switch format {
	case "human", "":
		writeConfigHuman(w, current, defaults, diffOnly)
		return nil
	case "json":
		out, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(current); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(current)
	default:
		return fmt.Errorf("unsupported format %q (want human, json, yaml or toml)", format)
	}
}

func writeConfigHuman(w io.Writer, current, defaults map[string]interface{}, diffOnly bool) {
	fmt.Fprintln(w, "Hybrid Server Configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))

	flat := flatten(current, "")
	flatDefaults := flatten(defaults, "")
	if diffOnly && len(flat) == 0 {
		fmt.Fprintln(w, "(no modifications - using all defaults)")
		return
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		modified := ""
		if def, ok := flatDefaults[k]; ok && !isEqual(flat[k], def) {
			modified = fmt.Sprintf(" (default: %v)", displayValue(def))
		}
		fmt.Fprintf(w, "%s: %v%s\n", k, displayValue(flat[k]), modified)
	}
}

// configToMap round-trips cfg through JSON so every encoder sees the same keys.
func configToMap(cfg *config.Config) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	normalizeNumbers(m)
	return m, nil
}

// normalizeNumbers replaces json.Number values with int64 so TOML writes
// them as integers.
func normalizeNumbers(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case json.Number:
			if n, err := val.Int64(); err == nil {
				m[k] = n
			} else if f, err := val.Float64(); err == nil {
				m[k] = f
			}
		case map[string]interface{}:
			normalizeNumbers(val)
		}
	}
}

func flatten(m map[string]interface{}, prefix string) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range flatten(nested, prefix+k+".") {
				out[nk] = nv
			}
			continue
		}
		out[prefix+k] = v
	}
	return out
}

func displayValue(v interface{}) interface{} {
	if s, ok := v.(string); ok && s == "" {
		return `""`
	}
	return v
}

func isEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func computeDiff(current, defaults map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for key, currentVal := range current {
		defaultVal, exists := defaults[key]
		if !exists {
			diff[key] = currentVal
			continue
		}

		currentMap, currentIsMap := currentVal.(map[string]interface{})
		defaultMap, defaultIsMap := defaultVal.(map[string]interface{})
		if currentIsMap && defaultIsMap {
			if nested := computeDiff(currentMap, defaultMap); len(nested) > 0 {
				diff[key] = nested
			}
		} else if !isEqual(currentVal, defaultVal) {
			diff[key] = currentVal
		}
	}
	return diff
}

// envVarName mirrors viper's AutomaticEnv key mapping.
func envVarName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func printEnvVars(w io.Writer) {
	defaults, err := configToMap(config.DefaultConfig())
	if err != nil {
		return
	}
	flat := flatten(defaults, "")
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "Supported environment variables")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	for _, k := range keys {
		fmt.Fprintf(w, "  %-28s %s\n", envVarName(k), k)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example usage:")
	fmt.Fprintln(w, "  HYBRID_PORT=9000 hybridserver serve")
	fmt.Fprintln(w, "  HYBRID_DB_URL=jdbc:mysql://localhost:3306/hstestdb hybridserver serve")
}
