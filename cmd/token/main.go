package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"secondbrain/internal/config"
	"secondbrain/pkg/access"
	pkgconfig "secondbrain/pkg/config"
)

// token 为 owner 签发调用捕获接口用的 JWT，供 webhook/快捷指令配置使用
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		owner     int64
		ttl       time.Duration
		env       string
		configDir string
	)

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a bearer token for an owner",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env, configDir)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if owner == 0 {
				return fmt.Errorf("--owner is required")
			}
			owners := access.NewAllowList(cfg.Owners.Allowed)
			if !owners.Allowed(owner) {
				return &access.OwnerForbiddenError{OwnerID: owner}
			}
			if ttl <= 0 {
				ttl = cfg.JWTTTL()
			}

			tok, err := access.IssueToken(owner, cfg.JWT.Secret, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().Int64Var(&owner, "owner", 0, "owner (chat) id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to jwt.ttl")
	cmd.Flags().StringVar(&env, "env", pkgconfig.GetConfigEnv(), "config environment")
	cmd.Flags().StringVar(&configDir, "config-dir", "config", "config directory")
	return cmd
}
