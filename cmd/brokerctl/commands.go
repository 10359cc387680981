package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	httpmiddleware "github.com/wolfman30/mortgage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "brokerctl",
		Short: "Mortgage broker tooling",
		Long: `Offline access to the affordability calculator, lead scorer and
persona selector, plus admin token minting.

Available subcommands:
  calc    - Run the affordability calculator on a JSON input
  score   - Score an applicant profile
  persona - Pick the persona for a score
  token   - Sign an admin or broker token`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCalcCmd(), newScoreCmd(), newPersonaCmd(), newTokenCmd())
	return root
}

func newCalcCmd() *cobra.Command {
	var (
		file       string
		stressRate float64
	)
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Run the affordability calculator",
		Long: `Reads a calculator input as JSON from --file or stdin and prints the
rounded result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in affordability.Input
			if err := readJSON(cmd, file, &in); err != nil {
				return err
			}
			if problems := in.Validate(); len(problems) > 0 {
				return fmt.Errorf("invalid input: %s", strings.Join(problems, "; "))
			}
			rules := affordability.DefaultRules()
			if stressRate > 0 {
				rules = rules.WithStressRate(stressRate)
			}
			return writeJSON(cmd.OutOrStdout(), affordability.CalculateWithRules(in, rules).Rounded())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "input JSON file (default stdin)")
	cmd.Flags().Float64Var(&stressRate, "stress-rate", 0, "override the stress rate, in percent")
	return cmd
}

type scoreOutput struct {
	Score   leads.Score `json:"score"`
	Persona string      `json:"personaId"`
}

func newScoreCmd() *cobra.Command {
	var (
		file string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an applicant profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile leads.ApplicantProfile
			if err := readJSON(cmd, file, &profile); err != nil {
				return err
			}
			score := leads.ScoreProfile(profile)
			p := persona.NewSelector(seed).Select(score.Value, persona.Context{
				LoanType: string(profile.LoanType),
				Urgent:   profile.Urgent,
			})
			return writeJSON(cmd.OutOrStdout(), scoreOutput{Score: score, Persona: p.ID})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "profile JSON file (default stdin)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "persona tie-break seed")
	return cmd
}

func newPersonaCmd() *cobra.Command {
	var (
		loanType string
		urgent   bool
		seed     int64
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "persona [score]",
		Short: "Pick the persona for a lead score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return writeJSON(cmd.OutOrStdout(), persona.All())
			}
			if len(args) == 0 {
				return errors.New("score is required unless --list is set")
			}
			var score int
			if _, err := fmt.Sscanf(args[0], "%d", &score); err != nil || score < 0 || score > 100 {
				return fmt.Errorf("score must be an integer between 0 and 100, got %q", args[0])
			}
			p := persona.NewSelector(seed).Select(score, persona.Context{LoanType: loanType, Urgent: urgent})
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&loanType, "loan-type", "", "loan type of the lead")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "lead flagged urgent")
	cmd.Flags().Int64Var(&seed, "seed", 1, "tie-break seed")
	cmd.Flags().BoolVar(&list, "list", false, "print the persona catalog")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an admin or broker token",
		Long: `Signs an HS256 token for the /admin API. The secret defaults to
ADMIN_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("ADMIN_JWT_SECRET")
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("a signing secret is required (--secret or ADMIN_JWT_SECRET)")
			}
			if role != httpmiddleware.RoleAdmin && role != httpmiddleware.RoleBroker {
				return fmt.Errorf("unknown role %q", role)
			}
			if strings.TrimSpace(subject) == "" {
				return errors.New("--sub is required")
			}
			token, err := httpmiddleware.SignAdminToken(secret, subject, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret")
	cmd.Flags().StringVar(&subject, "sub", "", "token subject, usually the broker email")
	cmd.Flags().StringVar(&role, "role", httpmiddleware.RoleBroker, "admin or broker")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func readJSON(cmd *cobra.Command, file string, v any) error {
	var r io.Reader = cmd.InOrStdin()
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
