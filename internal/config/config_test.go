package config

import "testing"

func baseValidConfig() Config {
	return Config{
		Gateway:  GatewayConfig{Mode: "backtest"},
		Strategy: StrategyConfig{Symbols: []string{"sc2602.INE"}, EMAFast: 12, EMASlow: 26},
		Risk:     RiskConfig{MaxGlobalOpenVolume: 100, MaxContractOpenVolume: 10},
		Persistence: PersistenceConfig{StatePath: "state.json"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := baseValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a valid config, got error: %v", err)
	}
}

func TestValidateRejectsUnknownGatewayMode(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Gateway.Mode = "paper"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown gateway mode")
	}
}

func TestValidateRequiresBaseURLInLiveMode(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Gateway.Mode = "live"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when live mode has no base_url")
	}
	cfg.Gateway.BaseURL = "https://example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a valid config once base_url is set, got: %v", err)
	}
}

func TestValidateRequiresAtLeastOneSymbol(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Strategy.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when strategy.symbols is empty")
	}
}

func TestValidateRequiresPositiveEMAPeriods(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Strategy.EMAFast = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when ema_fast is not positive")
	}
}

func TestValidateRequiresPositiveRiskLimits(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Risk.MaxGlobalOpenVolume = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when max_global_open_volume is not positive")
	}

	cfg = baseValidConfig()
	cfg.Risk.MaxContractOpenVolume = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when max_contract_open_volume is not positive")
	}
}

func TestValidateRequiresStatePath(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Persistence.StatePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when persistence.state_path is empty")
	}
}
