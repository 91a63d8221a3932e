package main

import (
	"fmt"
	"math/big"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	core "synnergy-network/core"
)

// yamlGenesisConfig is the on-disk shape of a file-driven genesis config,
// the YAML counterpart to wireGenesisRequest: hex addresses, decimal-string
// balances (yaml.v3 has no native big.Int support), and an optional gas
// schedule override keyed by host function name.
type yamlGenesisConfig struct {
	ProtocolVersion struct {
		Major uint32 `yaml:"major"`
		Minor uint32 `yaml:"minor"`
		Patch uint32 `yaml:"patch"`
	} `yaml:"protocol_version"`
	Accounts []struct {
		Address string `yaml:"address"`
		Balance string `yaml:"balance"`
	} `yaml:"accounts"`
	InitialBonds []struct {
		Validator string `yaml:"validator"`
		Amount    string `yaml:"amount"`
	} `yaml:"initial_bonds"`
	MintCodePath string            `yaml:"mint_code_path"`
	POSCodePath  string            `yaml:"pos_code_path"`
	GasSchedule  map[string]uint64 `yaml:"gas_schedule"`
}

var hostFunctionsByName = map[string]core.HostFunction{
	core.HostGetArg.String():                   core.HostGetArg,
	core.HostRet.String():                      core.HostRet,
	core.HostRevert.String():                   core.HostRevert,
	core.HostCallContract.String():              core.HostCallContract,
	core.HostNewURef.String():                  core.HostNewURef,
	core.HostRead.String():                     core.HostRead,
	core.HostWrite.String():                    core.HostWrite,
	core.HostAdd.String():                      core.HostAdd,
	core.HostPutKey.String():                   core.HostPutKey,
	core.HostGetKey.String():                   core.HostGetKey,
	core.HostRemoveKey.String():                core.HostRemoveKey,
	core.HostStoreFunctionAtHash.String():      core.HostStoreFunctionAtHash,
	core.HostUpgradeContractAtURef.String():    core.HostUpgradeContractAtURef,
	core.HostCreatePurse.String():              core.HostCreatePurse,
	core.HostTransferPurseToPurse.String():     core.HostTransferPurseToPurse,
	core.HostGetPOS.String():                   core.HostGetPOS,
	core.HostGetMint.String():                  core.HostGetMint,
	core.HostMainPurse.String():                core.HostMainPurse,
}

func (y yamlGenesisConfig) toCore() (core.GenesisConfig, error) {
	accounts := make([]core.GenesisAccount, 0, len(y.Accounts))
	for _, a := range y.Accounts {
		addr, err := core.AddressFromHex(a.Address)
		if err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: account %q: %w", a.Address, err)
		}
		bal, ok := new(big.Int).SetString(a.Balance, 10)
		if !ok {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: invalid balance %q for %s", a.Balance, a.Address)
		}
		accounts = append(accounts, core.GenesisAccount{Address: addr, Balance: bal})
	}

	bonds := make([]core.InitialBond, 0, len(y.InitialBonds))
	for _, b := range y.InitialBonds {
		addr, err := core.AddressFromHex(b.Validator)
		if err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: validator %q: %w", b.Validator, err)
		}
		amt, ok := new(big.Int).SetString(b.Amount, 10)
		if !ok {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: invalid bond amount %q for %s", b.Amount, b.Validator)
		}
		bonds = append(bonds, core.InitialBond{Validator: addr, Amount: amt})
	}

	costs := core.DefaultWasmCosts()
	for name, cost := range y.GasSchedule {
		fn, ok := hostFunctionsByName[name]
		if !ok {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: unknown host function %q in gas_schedule", name)
		}
		costs.HostCall[fn] = cost
	}

	var mintCode, posCode []byte
	var err error
	if y.MintCodePath != "" {
		if mintCode, err = os.ReadFile(y.MintCodePath); err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: read mint_code_path: %w", err)
		}
	}
	if y.POSCodePath != "" {
		if posCode, err = os.ReadFile(y.POSCodePath); err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis yaml: read pos_code_path: %w", err)
		}
	}

	return core.GenesisConfig{
		ProtocolVersion: core.NewProtocolVersion(y.ProtocolVersion.Major, y.ProtocolVersion.Minor, y.ProtocolVersion.Patch),
		Accounts:        accounts,
		WasmCosts:       costs,
		MintCode:        mintCode,
		POSCode:         posCode,
		InitialBonds:    bonds,
	}, nil
}

func newGenesisCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "genesis [config.yaml]",
		Short: "Run genesis from a YAML config file and print the resulting state digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("genesis: read config: %w", err)
			}
			var y yamlGenesisConfig
			if err := yaml.Unmarshal(raw, &y); err != nil {
				return fmt.Errorf("genesis: parse yaml: %w", err)
			}
			gcfg, err := y.toCore()
			if err != nil {
				return err
			}

			if dataDir == "" {
				dataDir = "./data"
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("genesis: create data dir: %w", err)
			}
			gs, err := core.NewGlobalState(core.GlobalStateConfigFromDir(dataDir))
			if err != nil {
				return fmt.Errorf("genesis: open global state: %w", err)
			}
			defer gs.Close()

			res := core.RunGenesis(gs, gcfg)
			if !res.Success {
				return fmt.Errorf("genesis failed: %s", res.FailureMessage)
			}
			log.WithField("post_state_digest", res.PostDigest.String()).Info("genesis: complete")
			fmt.Println(res.PostDigest.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "global state data directory")
	return cmd
}
