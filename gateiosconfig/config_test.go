package gateiosconfig

import "testing"

func validConfig() *Config {
	return &Config{
		BaseURL:          "https://auth.gateai.net",
		BundleIdentifier: "net.gateai.app",
		TeamIdentifier:   "ABCD123456",
		Environment:      EnvironmentDevice,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsMissingBaseURL(t *testing.T) {
	c := validConfig()
	c.BaseURL = ""
	if err := c.Validate(); err != ErrMissingBaseURL {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}

func TestValidateRejectsMissingBundleIdentifier(t *testing.T) {
	c := validConfig()
	c.BundleIdentifier = ""
	if err := c.Validate(); err != ErrMissingBundleIdentifier {
		t.Fatalf("expected ErrMissingBundleIdentifier, got %v", err)
	}
}

func TestValidateRejectsMalformedTeamIdentifier(t *testing.T) {
	cases := []string{"", "short", "toolongbyfar1", "has-dash456"}
	for _, tid := range cases {
		c := validConfig()
		c.TeamIdentifier = tid
		if err := c.Validate(); err != ErrInvalidTeamIdentifier {
			t.Fatalf("team_identifier %q: expected ErrInvalidTeamIdentifier, got %v", tid, err)
		}
	}
}

func TestWithDefaultsSetsLogLevel(t *testing.T) {
	c := &Config{}
	c.WithDefaults()
	if c.LogLevel != "info" {
		t.Fatalf("expected default log level \"info\", got %q", c.LogLevel)
	}
}

func TestAllowsDevelopmentTokenOnlyOnSimulator(t *testing.T) {
	c := validConfig()
	c.DevelopmentToken = "dev-token"
	c.Environment = EnvironmentDevice
	if c.AllowsDevelopmentToken() {
		t.Fatal("expected development token to be disallowed on a real device")
	}
	c.Environment = EnvironmentSimulator
	if !c.AllowsDevelopmentToken() {
		t.Fatal("expected development token to be allowed on the simulator")
	}
}
