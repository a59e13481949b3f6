package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opd-ai/nowlink"
	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	"github.com/opd-ai/nowlink/real"
	simradio "github.com/opd-ai/nowlink/testing"
	"github.com/sirupsen/logrus"
)

// Environment variables read by NewNodeFactory.
const (
	EnvUseSimulation    = "NOWLINK_USE_SIMULATION"
	EnvDispatchDepth    = "NOWLINK_DISPATCH_DEPTH"
	EnvDefaultInterface = "NOWLINK_DEFAULT_INTERFACE"
)

// NodeFactory creates nodes based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type NodeFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.NodeConfig

	// air and nextAddr back nodes created in simulation mode without a driver.
	air      *simradio.Air
	nextAddr uint16
}

// ConfigOption customizes the configuration of a single node.
type ConfigOption func(*interfaces.NodeConfig)

// NewNodeFactory creates a factory with default configuration and
// environment overrides applied.
func NewNodeFactory() *NodeFactory {
	config := interfaces.DefaultNodeConfig()
	applyEnvironmentOverrides(config)
	logConfigurationInfo(config)

	return &NodeFactory{
		defaultConfig: config,
	}
}

func applyEnvironmentOverrides(config *interfaces.NodeConfig) {
	parseSimulationSetting(config)
	parseDispatchDepthSetting(config)
	parseDefaultInterfaceSetting(config)
}

func parseSimulationSetting(config *interfaces.NodeConfig) {
	value := os.Getenv(EnvUseSimulation)
	if value == "" {
		return
	}
	useSim, err := strconv.ParseBool(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseSimulationSetting",
			"env_var":     EnvUseSimulation,
			"value":       value,
			"error":       err.Error(),
			"using_value": config.UseSimulation,
		}).Warn("Failed to parse NOWLINK_USE_SIMULATION environment variable, using default")
		return
	}
	config.UseSimulation = useSim
}

// parseDispatchDepthSetting only accepts depths in [1, limits.MaxDispatchDepth].
func parseDispatchDepthSetting(config *interfaces.NodeConfig) {
	value := os.Getenv(EnvDispatchDepth)
	if value == "" {
		return
	}
	depth, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseDispatchDepthSetting",
			"env_var":     EnvDispatchDepth,
			"value":       value,
			"error":       err.Error(),
			"using_value": config.DispatchQueueDepth,
		}).Warn("Failed to parse NOWLINK_DISPATCH_DEPTH environment variable, using default")
		return
	}
	if err := limits.ValidateDispatchDepth(depth); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseDispatchDepthSetting",
			"env_var":     EnvDispatchDepth,
			"value":       depth,
			"min":         1,
			"max":         limits.MaxDispatchDepth,
			"using_value": config.DispatchQueueDepth,
		}).Warn("NOWLINK_DISPATCH_DEPTH value out of bounds, using default")
		return
	}
	config.DispatchQueueDepth = depth
}

func parseDefaultInterfaceSetting(config *interfaces.NodeConfig) {
	value := os.Getenv(EnvDefaultInterface)
	if value == "" {
		return
	}
	iface, err := radio.ParseInterface(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseDefaultInterfaceSetting",
			"env_var":     EnvDefaultInterface,
			"value":       value,
			"error":       err.Error(),
			"using_value": config.DefaultInterface.String(),
		}).Warn("Failed to parse NOWLINK_DEFAULT_INTERFACE environment variable, using default")
		return
	}
	config.DefaultInterface = iface
}

func logConfigurationInfo(config *interfaces.NodeConfig) {
	logrus.WithFields(logrus.Fields{
		"function":          "NewNodeFactory",
		"use_simulation":    config.UseSimulation,
		"dispatch_depth":    config.DispatchQueueDepth,
		"default_interface": config.DefaultInterface.String(),
	}).Info("Created node factory with configuration")
}

// CreateNode creates a node over driver using the factory configuration.
func (f *NodeFactory) CreateNode(driver interfaces.RadioDriver) (*nowlink.Node, error) {
	return f.CreateNodeWithConfig(driver, nil)
}

// CreateNodeWithConfig creates a node over driver with a custom
// configuration. A nil config selects the factory default. In simulation
// mode a nil driver is replaced by a new radio on the factory's channel.
func (f *NodeFactory) CreateNodeWithConfig(driver interfaces.RadioDriver, config *interfaces.NodeConfig) (*nowlink.Node, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}

	logrus.WithFields(logrus.Fields{
		"function":          "CreateNodeWithConfig",
		"use_simulation":    config.UseSimulation,
		"dispatch_depth":    config.DispatchQueueDepth,
		"default_interface": config.DefaultInterface.String(),
	}).Info("Creating node")

	if driver == nil {
		if !config.UseSimulation {
			return nil, fmt.Errorf("%w: radio driver is required outside simulation mode", radio.ErrValidation)
		}
		driver = f.attachSimulatedRadio()
	}
	return nowlink.New(driver, config)
}

// attachSimulatedRadio adds a radio with a locally administered address to
// the factory's own channel.
func (f *NodeFactory) attachSimulatedRadio() *simradio.SimulatedRadio {
	f.mu.Lock()
	if f.air == nil {
		f.air = simradio.NewAir()
	}
	f.nextAddr++
	addr := radio.Address{0x02, 0x4e, 0x4c, 0x00, byte(f.nextAddr >> 8), byte(f.nextAddr)}
	air := f.air
	f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "attachSimulatedRadio",
		"radio_addr": addr.String(),
	}).Info("Creating simulated radio")
	return air.NewRadio(addr)
}

// Air returns the channel used for nodes created in simulation mode
// without a driver.
func (f *NodeFactory) Air() *simradio.Air {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.air == nil {
		f.air = simradio.NewAir()
	}
	return f.air
}

// WithDispatchDepth sets the dispatch queue capacity.
func WithDispatchDepth(depth int) ConfigOption {
	return func(c *interfaces.NodeConfig) {
		c.DispatchQueueDepth = depth
	}
}

// WithDefaultInterface sets the role new peers are bound to.
func WithDefaultInterface(iface radio.Interface) ConfigOption {
	return func(c *interfaces.NodeConfig) {
		c.DefaultInterface = iface
	}
}

// CreateSimulatedNode attaches a radio with address addr to air and creates a
// node over it. The factory configuration is the starting point for opts.
func (f *NodeFactory) CreateSimulatedNode(air *simradio.Air, addr radio.Address, opts ...ConfigOption) (*nowlink.Node, *simradio.SimulatedRadio, error) {
	if air == nil {
		return nil, nil, fmt.Errorf("%w: nil simulated channel", radio.ErrValidation)
	}

	config := f.GetCurrentConfig()
	config.UseSimulation = true
	for _, opt := range opts {
		opt(config)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "CreateSimulatedNode",
		"radio_addr":     addr.String(),
		"dispatch_depth": config.DispatchQueueDepth,
	}).Info("Creating simulated node")

	sim := air.NewRadio(addr)
	node, err := nowlink.New(sim, config)
	if err != nil {
		air.Detach(addr)
		return nil, nil, err
	}
	return node, sim, nil
}

// CreateUDPNode creates a UDP radio from radioConfig and a node over it. The
// factory configuration is the starting point for opts.
func (f *NodeFactory) CreateUDPNode(radioConfig real.Config, opts ...ConfigOption) (*nowlink.Node, *real.UDPRadio, error) {
	config := f.GetCurrentConfig()
	config.UseSimulation = false
	for _, opt := range opts {
		opt(config)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "CreateUDPNode",
		"radio_addr":     radioConfig.Address.String(),
		"listen_addr":    radioConfig.ListenAddr,
		"dispatch_depth": config.DispatchQueueDepth,
	}).Info("Creating UDP node")

	drv, err := real.NewUDPRadio(radioConfig)
	if err != nil {
		return nil, nil, err
	}
	node, err := nowlink.New(drv, config)
	if err != nil {
		return nil, nil, err
	}
	return node, drv, nil
}

// SwitchToSimulation switches the configuration to use simulation.
func (f *NodeFactory) SwitchToSimulation() {
	f.setSimulation(true)
}

// SwitchToReal switches the configuration to require a real driver.
func (f *NodeFactory) SwitchToReal() {
	f.setSimulation(false)
}

func (f *NodeFactory) setSimulation(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "setSimulation",
		"previous": f.defaultConfig.UseSimulation,
		"current":  on,
	}).Info("Switching factory mode")
	f.defaultConfig.UseSimulation = on
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *NodeFactory) GetCurrentConfig() *interfaces.NodeConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cfg := *f.defaultConfig
	return &cfg
}

// IsUsingSimulation returns true if the factory is configured for simulation.
func (f *NodeFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.defaultConfig.UseSimulation
}

// UpdateConfig validates config and makes a copy of it the default.
func (f *NodeFactory) UpdateConfig(config *interfaces.NodeConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":           "UpdateConfig",
		"old_simulation":     f.defaultConfig.UseSimulation,
		"new_simulation":     config.UseSimulation,
		"old_dispatch_depth": f.defaultConfig.DispatchQueueDepth,
		"new_dispatch_depth": config.DispatchQueueDepth,
	}).Info("Updating factory configuration")

	cfg := *config
	f.defaultConfig = &cfg
	return nil
}
