package envelope

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
)

// HubInfo is a relay server's self-reported status, served at /chain-info.
type HubInfo struct {
	RelayWorkerAddress  common.Address
	RelayManagerAddress common.Address
	RelayHubAddress     common.Address
	FeesReceiver        common.Address
	MinGasPrice         *big.Int
	ChainID             *big.Int
	NetworkID           *big.Int
	Ready               bool
	Version             string
}

// RelayManagerData is the relay hub's registration record for a relay manager.
type RelayManagerData struct {
	Manager         common.Address
	URL             string
	CurrentlyStaked bool
	Registered      bool
}

// RelayInfo pairs a relay's self-reported status with its on-chain registration.
type RelayInfo struct {
	// URL is the endpoint the status was fetched from.
	URL         string
	HubInfo     HubInfo
	ManagerData RelayManagerData
}

type hubInfoJSON struct {
	RelayWorkerAddress  string          `json:"relayWorkerAddress"`
	RelayManagerAddress string          `json:"relayManagerAddress"`
	RelayHubAddress     string          `json:"relayHubAddress"`
	FeesReceiver        string          `json:"feesReceiver"`
	MinGasPrice         json.RawMessage `json:"minGasPrice"`
	ChainID             json.RawMessage `json:"chainId"`
	NetworkID           json.RawMessage `json:"networkId"`
	Ready               bool            `json:"ready"`
	Version             string          `json:"version"`
}

func (h HubInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(hubInfoJSON{
		RelayWorkerAddress:  h.RelayWorkerAddress.Hex(),
		RelayManagerAddress: h.RelayManagerAddress.Hex(),
		RelayHubAddress:     h.RelayHubAddress.Hex(),
		FeesReceiver:        h.FeesReceiver.Hex(),
		MinGasPrice:         quoteBig(h.MinGasPrice),
		ChainID:             quoteBig(h.ChainID),
		NetworkID:           quoteBig(h.NetworkID),
		Ready:               h.Ready,
		Version:             h.Version,
	})
}

func (h *HubInfo) UnmarshalJSON(data []byte) error {
	var raw hubInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("envelope: hub info: %w", err)
	}

	var info HubInfo
	var err error
	if info.RelayWorkerAddress, err = parseAddress("relayWorkerAddress", raw.RelayWorkerAddress); err != nil {
		return err
	}
	if info.RelayManagerAddress, err = parseAddress("relayManagerAddress", raw.RelayManagerAddress); err != nil {
		return err
	}
	if info.RelayHubAddress, err = parseAddress("relayHubAddress", raw.RelayHubAddress); err != nil {
		return err
	}
	if info.FeesReceiver, err = parseOptionalAddress("feesReceiver", raw.FeesReceiver); err != nil {
		return err
	}
	if info.MinGasPrice, err = parseRawQuantity("minGasPrice", raw.MinGasPrice); err != nil {
		return err
	}
	if info.ChainID, err = parseRawQuantity("chainId", raw.ChainID); err != nil {
		return err
	}
	if info.NetworkID, err = parseRawQuantity("networkId", raw.NetworkID); err != nil {
		return err
	}
	info.Ready = raw.Ready
	info.Version = raw.Version

	*h = info
	return nil
}

func quoteBig(v *big.Int) json.RawMessage {
	if v == nil {
		return json.RawMessage(`"0"`)
	}
	return json.RawMessage(`"` + v.String() + `"`)
}

// parseRawQuantity accepts a JSON number, a quoted decimal string or a quoted
// 0x-prefixed hex string. A missing value parses as zero.
func parseRawQuantity(name string, raw json.RawMessage) (*big.Int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return new(big.Int), nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("envelope: %s: %w", name, err)
		}
	}
	return parseQuantity(name, s)
}
