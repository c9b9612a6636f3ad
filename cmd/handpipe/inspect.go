package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sova-tungnv/web-ai/internal/hook"
	"github.com/sova-tungnv/web-ai/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List the hooks found in the hook directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := hook.NewManager(cfg.Hooks.Dir)
		if err := m.Discover(); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tEVENTS\tEXECUTABLE")
		for _, h := range m.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				h.Manifest.Name,
				h.Manifest.Version,
				strings.Join(h.Manifest.Events, ","),
				h.Executable,
			)
		}
		return w.Flush()
	},
}

var (
	sessionsLimit  int
	sessionsTarget string
	sessionsJSON   bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded drag sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(configCmd, sessionsCmd, hooksCmd)

	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum number of sessions (0 for all)")
	sessionsCmd.Flags().StringVar(&sessionsTarget, "target", "", "Only sessions that dragged this target")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Output JSON")
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path is not configured")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	repo := st.Sessions()
	sessions, err := repo.List(sessionsLimit)
	if sessionsTarget != "" {
		sessions, err = repo.ListByTarget(sessionsTarget)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTARGET\tINSTANCE\tREASON\tDURATION")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.TargetID,
			s.InstanceID,
			s.EndReason,
			s.EndedAt.Sub(s.StartedAt),
		)
	}
	return w.Flush()
}
