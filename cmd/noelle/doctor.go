package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"noelle/internal/adapter/llm"
	"noelle/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Output styles. lipgloss drops colors when stdout is not a terminal or
// NO_COLOR is set.
var (
	stylePass  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}).Bold(true)
	styleFail  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}).Bold(true)
	styleTitle = lipgloss.NewStyle().Bold(true)
	styleFix   = lipgloss.NewStyle().Faint(true)
)

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Some checks still run without a usable config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Provider credentials", Fn: checkProviderCredentials},
		{Name: "Provider connectivity", Fn: checkProviderConnectivity},
		{Name: "Data directory", Fn: checkDataDir},
		{Name: "Gateway address", Fn: checkGatewayAddr},
		{Name: "Disk space", Fn: checkDiskSpace},
		{Name: "Network", Fn: checkNetwork},
	}

	fmt.Println(styleTitle.Render("noelle doctor"))
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", renderStatus(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Println(styleFix.Render("      Fix: " + result.Fix))
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above to ensure noelle runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nnoelle should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! noelle is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func renderStatus(s CheckStatus) string {
	icon := statusIcon(s)
	switch s {
	case StatusPass:
		return stylePass.Render(icon)
	case StatusWarn:
		return styleWarn.Render(icon)
	case StatusFail:
		return styleFail.Render(icon)
	default:
		return icon
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile returns a check that verifies the config file parses. A
// missing file is fine: defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and permissions (0600)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkProviderCredentials builds every seeded provider through the same
// factory the app uses. The settings window can still supply what is
// missing, so gaps only warn.
func checkProviderCredentials(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}

	factory := llm.NewFactory(nil, cfg.LLM, nil, slog.New(slog.DiscardHandler))
	var ready, lacking []string
	for _, p := range cfg.LLM.Providers {
		if p.Disabled {
			continue
		}
		if _, err := factory.Create(p.Name); err != nil {
			lacking = append(lacking, err.Error())
		} else {
			ready = append(ready, p.Name)
		}
	}

	switch {
	case len(ready) == 0 && len(lacking) == 0:
		return CheckResult{
			Status:  StatusWarn,
			Message: "no providers seeded in config.yaml",
			Fix:     "Add llm.providers or enter credentials in the settings window",
		}
	case len(lacking) > 0:
		return CheckResult{
			Status:  StatusWarn,
			Message: strings.Join(lacking, "; "),
			Fix:     "Set them via NOELLE_LLM_PROVIDER_<NAME>_API_KEY or the settings window",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("credentials configured for: %s", strings.Join(ready, ", ")),
	}
}

// providerEndpoint returns a URL that answers when the provider is up.
func providerEndpoint(p config.ProviderConfig) string {
	if p.BaseURL != "" {
		base := strings.TrimRight(p.BaseURL, "/")
		if p.Name == "ollama" {
			return base + "/api/tags"
		}
		return base
	}
	switch p.Name {
	case "openai":
		return "https://api.openai.com/v1/models"
	case "deepseek":
		return "https://api.deepseek.com/"
	case "dashscope":
		return "https://dashscope.aliyuncs.com/"
	case "qianfan":
		return "https://aip.baidubce.com/"
	case "anthropic":
		return "https://api.anthropic.com/"
	case "gemini":
		return "https://generativelanguage.googleapis.com/"
	case "openrouter":
		return "https://openrouter.ai/api/v1/models"
	case "ollama":
		return "http://localhost:11434/api/tags"
	default:
		return ""
	}
}

// checkProviderConnectivity probes every enabled provider with an endpoint.
func checkProviderConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	var reached, failed []string
	for _, p := range cfg.LLM.Providers {
		endpoint := providerEndpoint(p)
		if p.Disabled || endpoint == "" {
			continue
		}
		start := time.Now()
		resp, err := client.Get(endpoint)
		if err != nil {
			failed = append(failed, p.Name)
			continue
		}
		resp.Body.Close()
		reached = append(reached, fmt.Sprintf("%s %dms", p.Name, time.Since(start).Milliseconds()))
	}

	if len(reached) == 0 && len(failed) == 0 {
		return CheckResult{Status: StatusWarn, Message: "no provider endpoints to probe"}
	}
	if len(failed) > 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("unreachable: %s", strings.Join(failed, ", ")),
			Fix:     "Check your internet connection, proxy and base_url settings",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("reachable: %s", strings.Join(reached, ", ")),
	}
}

// checkDataDir verifies the data directory exists and is writable.
func checkDataDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}

	absDir, _ := filepath.Abs(cfg.App.DataDir)

	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(absDir, 0700); mkErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("data directory %s does not exist and cannot be created: %v", absDir, mkErr),
				Fix:     fmt.Sprintf("Create the directory: mkdir -p %s", absDir),
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("data directory created at %s", absDir)}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot stat data directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s exists but is not a directory", absDir)}
	}

	testFile := filepath.Join(absDir, ".doctor-check")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("data directory %s is not writable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 700 %s", absDir),
		}
	}
	os.Remove(testFile)

	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("data directory %s writable", absDir)}
}

// checkGatewayAddr verifies the renderer gateway can bind its address.
func checkGatewayAddr(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Gateway.Addr, err),
			Fix:     "Stop the other noelle instance or change gateway.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is free", cfg.Gateway.Addr)}
}

// checkDiskSpace checks available disk space in the data directory.
func checkDiskSpace(cfg *config.Config) CheckResult {
	dataDir := "./data"
	if cfg != nil && cfg.App.DataDir != "" {
		dataDir = cfg.App.DataDir
	}

	absDir, _ := filepath.Abs(dataDir)

	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		return CheckResult{Status: StatusPass, Message: "data directory does not exist yet, space check skipped"}
	}

	out, err := exec.Command("df", "-h", absDir).Output()
	if err != nil {
		return CheckResult{Status: StatusWarn, Message: "could not determine disk space (df command failed)"}
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return CheckResult{Status: StatusWarn, Message: "unexpected df output format"}
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 5 {
		return CheckResult{Status: StatusWarn, Message: "unexpected df output format"}
	}

	available := fields[3]
	usePercent := fields[4]
	var pct int
	fmt.Sscanf(strings.TrimSuffix(usePercent, "%"), "%d", &pct)

	if pct >= 95 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("disk almost full: %s used, %s available", usePercent, available),
			Fix:     "Free up disk space or move app.data_dir to a different partition",
		}
	}
	if pct >= 85 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("disk usage high: %s used, %s available", usePercent, available),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("disk usage: %s used, %s available", usePercent, available),
	}
}

// checkNetwork verifies basic internet connectivity.
func checkNetwork(_ *config.Config) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d net.Dialer
	for _, addr := range []string{"1.1.1.1:443", "8.8.8.8:443"} {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return CheckResult{Status: StatusPass, Message: "internet connectivity OK"}
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: "no internet connectivity detected",
		Fix:     "Check your network connection and firewall settings",
	}
}
