package strategy

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetupDoc is one declarative setup entry as written in strategy.json.
type SetupDoc struct {
	Name       string         `mapstructure:"name"`
	Properties map[string]any `mapstructure:"properties"`
	Indicators []SetupDoc     `mapstructure:"indicators"`
	Validators []SetupDoc     `mapstructure:"validators"`
}

// Document is the raw strategy.json shape.
type Document struct {
	ActiveTimes            string     `mapstructure:"active_times"`
	EntrySignalSetups      []SetupDoc `mapstructure:"entry_signal_setups"`
	TakeProfitSetups       []SetupDoc `mapstructure:"take_profit_order_placement_setup"`
	StopLossSetups         []SetupDoc `mapstructure:"stop_loss_order_placement_setup"`
	ComboTPSLSetups        []SetupDoc `mapstructure:"combo_of_tp_sl_order_placement_setup"`
	MarketValidationSystem []SetupDoc `mapstructure:"market_validation_system"`
	PositionSizing         SetupDoc   `mapstructure:"position_sizing_approach"`
	StaticSL               SetupDoc   `mapstructure:"static_sl_approach"`
	TradingFlow            SetupDoc   `mapstructure:"trading_flow_approach"`
	RiskPerTrade           float64    `mapstructure:"risk_per_trade"`
}

// LoadDocument reads configs/strategy.json from dir.
func LoadDocument(dir string) (*Document, error) {
	v := viper.New()
	v.SetConfigName("strategy")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy.json: %w", err)
	}
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decode strategy.json: %w", err)
	}
	return &doc, nil
}
