package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	httpmiddleware "github.com/wolfman30/mortgage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCalcFromStdin(t *testing.T) {
	input := `{"propertyPrice":1500000,"propertyType":"private","monthlyIncomes":[12000],"ages":[35],"citizenship":"citizen"}`
	out, err := run(t, input, "calc")
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	var res affordability.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.MaxLoan != 1125000 {
		t.Fatalf("expected max loan 1125000, got %v", res.MaxLoan)
	}
	if res.LimitingFactor != affordability.LimitLTV {
		t.Fatalf("expected LTV bound, got %s", res.LimitingFactor)
	}
}

func TestCalcFromFileRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	if err := os.WriteFile(path, []byte(`{"propertyPrice":0,"propertyType":"hdb"}`), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	_, err := run(t, "", "calc", "--file", path)
	if err == nil || !strings.Contains(err.Error(), "propertyPrice") {
		t.Fatalf("expected propertyPrice validation error, got %v", err)
	}
}

func TestCalcRejectsUnknownFields(t *testing.T) {
	if _, err := run(t, `{"price":1}`, "calc"); err == nil {
		t.Fatalf("expected decode error for unknown field")
	}
}

func TestScorePrintsBreakdownAndPersona(t *testing.T) {
	profile := `{"name":"Tan","email":"tan@example.com","phone":"+6591234567","loanType":"new_purchase",
		"propertyType":"private","propertyPrice":1500000,"monthlyIncomes":[15000],"ages":[35],
		"citizenship":"citizen","purchaseTimeline":"1-3 months","consentGiven":true}`
	out, err := run(t, profile, "score")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var got scoreOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Score.Value < 0 || got.Score.Value > 100 {
		t.Fatalf("score out of range: %d", got.Score.Value)
	}
	sum := 0
	for _, v := range got.Score.Breakdown {
		sum += v
	}
	if sum < got.Score.Value {
		t.Fatalf("breakdown %v does not cover score %d", got.Score.Breakdown, got.Score.Value)
	}
	if _, ok := persona.Lookup(got.Persona); !ok {
		t.Fatalf("unknown persona %q", got.Persona)
	}
}

func TestPersonaCommand(t *testing.T) {
	out, err := run(t, "", "persona", "70", "--loan-type", "refinance")
	if err != nil {
		t.Fatalf("persona: %v", err)
	}
	var p persona.Persona
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if p.ID != persona.SarahWong {
		t.Fatalf("expected %s for refinance at 70, got %s", persona.SarahWong, p.ID)
	}

	out, err = run(t, "", "persona", "30")
	if err != nil {
		t.Fatalf("persona: %v", err)
	}
	if !strings.Contains(out, persona.GraceLim) {
		t.Fatalf("expected %s for a cold lead, got %s", persona.GraceLim, out)
	}

	if _, err := run(t, "", "persona", "101"); err == nil {
		t.Fatalf("expected range error")
	}
	if _, err := run(t, "", "persona"); err == nil {
		t.Fatalf("expected missing score error")
	}

	out, err = run(t, "", "persona", "--list")
	if err != nil {
		t.Fatalf("persona --list: %v", err)
	}
	var all []persona.Persona
	if err := json.Unmarshal([]byte(out), &all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != len(persona.All()) {
		t.Fatalf("expected %d personas, got %d", len(persona.All()), len(all))
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	if _, err := run(t, "", "token", "--sub", "broker@example.com"); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := run(t, "", "token", "--secret", "s", "--sub", "x", "--role", "root"); err == nil {
		t.Fatalf("expected unknown role error")
	}

	out, err := run(t, "", "token", "--secret", "s3cret", "--sub", "broker@example.com", "--role", httpmiddleware.RoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	var claims httpmiddleware.AdminClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != httpmiddleware.RoleAdmin || claims.Subject != "broker@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}
