package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbcopy-dev/qbcopy/internal/config"
	"github.com/qbcopy-dev/qbcopy/internal/tokens"
)

func newTokensCommand() *cobra.Command {
	var configPath string
	var companies []string
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Authorize the app against each company and store fresh OAuth tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, configPath, companies, noBrowser)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "credentials.yml", "path to credentials.yml")
	cmd.Flags().StringSliceVar(&companies, "companies", []string{"source", "target"}, "companies to authorize")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")

	return cmd
}

func runTokens(cmd *cobra.Command, configPath string, companies []string, noBrowser bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret must be set in %s", configPath)
	}

	out := cmd.OutOrStdout()
	for _, name := range companies {
		var company *config.Company
		switch name {
		case "source":
			company = &cfg.Source
		case "target":
			company = &cfg.Target
		default:
			return fmt.Errorf("unknown company %q (expected source or target)", name)
		}
		if company.CompanyID == "" {
			return fmt.Errorf("%s: company_id must be set before authorizing", name)
		}

		fmt.Fprintf(out, "Authorizing %s company %s, waiting for the OAuth callback...\n", name, company.CompanyID)
		flow := &tokens.Flow{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  company.RedirectURI,
			Notify:       func(msg string) { fmt.Fprintln(out, msg) },
		}
		if !noBrowser {
			flow.OpenBrowser = tokens.Browser
		}

		pair, err := flow.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("authorizing %s: %w", name, err)
		}

		company.AccessToken = pair.AccessToken
		company.RefreshToken = pair.RefreshToken

		// Save after each company so a later failure keeps earlier tokens.
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved tokens for %s to %s\n", name, configPath)
	}
	return nil
}
