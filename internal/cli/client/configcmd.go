package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ConfigCmd creates the config parent command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI settings",
		Long:  "Show and change the settings stored in ~/.config/licitai/config.yaml",
	}

	cmd.AddCommand(ConfigShowCmd())
	cmd.AddCommand(ConfigSetCmd())
	cmd.AddCommand(ConfigClearCmd())

	return cmd
}

// ConfigShowCmd prints the effective settings and where each came from.
func ConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runConfigShow(cmd, outputJSON, cmd.OutOrStdout())
		},
	}
}

// ConfigSetCmd stores one setting in the global config.
func ConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Long:  "Store a setting. Keys: api_url, session_id, user_label, admin_token.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setConfigValue(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
			return nil
		},
	}
}

// ConfigClearCmd removes the global config file.
func ConfigClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared")
			return nil
		},
	}
}

func setConfigValue(key, value string) error {
	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	if config == nil {
		config = &GlobalConfig{}
	}

	switch strings.ToLower(key) {
	case "api_url":
		config.APIURL = strings.TrimRight(value, "/")
	case "session_id":
		config.SessionID = value
	case "user_label":
		config.UserLabel = value
	case "admin_token":
		config.AdminToken = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	return SaveGlobalConfig(config)
}

type settingView struct {
	Value  string        `json:"value"`
	Source SettingSource `json:"source"`
}

func runConfigShow(cmd *cobra.Command, outputJSON bool, out io.Writer) error {
	apiURL, apiURLSource, err := resolve(flagString(cmd, "api-url"), envAPIURL, func(c *GlobalConfig) string { return c.APIURL }, defaultAPIURL)
	if err != nil {
		return err
	}
	session, sessionSource, err := resolve(flagString(cmd, "session"), envSession, func(c *GlobalConfig) string { return c.SessionID }, "")
	if err != nil {
		return err
	}
	label, labelSource, err := resolve(flagString(cmd, "user"), envUserLabel, func(c *GlobalConfig) string { return c.UserLabel }, "")
	if err != nil {
		return err
	}
	token, tokenSource, err := resolve(flagString(cmd, "admin-token"), envAdminToken, func(c *GlobalConfig) string { return c.AdminToken }, "")
	if err != nil {
		return err
	}

	settings := map[string]settingView{
		"api_url":     {Value: apiURL, Source: apiURLSource},
		"session_id":  {Value: session, Source: sessionSource},
		"user_label":  {Value: label, Source: labelSource},
		"admin_token": {Value: maskToken(token), Source: tokenSource},
	}

	if outputJSON {
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, key := range []string{"api_url", "session_id", "user_label", "admin_token"} {
		s := settings[key]
		value := s.Value
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(out, "%-12s %s [%s]\n", key, value, s.Source)
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

// maskToken shows only the last four characters.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
