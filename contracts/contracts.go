// Package contracts embeds the ABIs of the relay hub, verifiers, forwarders,
// smart wallet factory and ERC20 token, and encodes/decodes the calls the
// relay client makes against them.
package contracts

import (
	_ "embed"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/ethartifact"
	"github.com/0xsequence/ethkit/go-ethereum/accounts/abi"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/envelope"
)

const (
	RelayHub           = "RelayHub"
	RelayVerifier      = "RelayVerifier"
	DeployVerifier     = "DeployVerifier"
	IForwarder         = "IForwarder"
	SmartWalletFactory = "SmartWalletFactory"
	IERC20             = "IERC20"
)

var (
	//go:embed artifacts/RelayHub.json
	artifact_relayHub string

	//go:embed artifacts/RelayVerifier.json
	artifact_relayVerifier string

	//go:embed artifacts/DeployVerifier.json
	artifact_deployVerifier string

	//go:embed artifacts/IForwarder.json
	artifact_forwarder string

	//go:embed artifacts/SmartWalletFactory.json
	artifact_smartWalletFactory string

	//go:embed artifacts/IERC20.json
	artifact_erc20 string

	registry = ethartifact.NewContractRegistry()
)

func init() {
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_relayHub))
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_relayVerifier))
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_deployVerifier))
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_forwarder))
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_smartWalletFactory))
	registry.MustAdd(ethartifact.MustParseArtifactJSON(artifact_erc20))
}

func GetContractArtifact(name string) (ethartifact.Artifact, bool) {
	return registry.Get(name)
}

// MethodID returns the 4-byte selector of a method of a registered contract.
func MethodID(contract, method string) []byte {
	m, ok := registry.MustGet(contract).ABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("contracts: %s has no method %s", contract, method))
	}
	return m.ID
}

// EncodeHubCall encodes relayCall for relay requests and deployCall for deploy requests.
func EncodeHubCall(req envelope.EnvelopingRequest, signature []byte) ([]byte, error) {
	arg, method, err := requestTuple(req, "relayCall", "deployCall")
	if err != nil {
		return nil, err
	}
	return encode(RelayHub, method, arg, nonNilBytes(signature))
}

// EncodeVerifyRelayedCall encodes verifyRelayedCall against the verifier ABI
// matching the request variant.
func EncodeVerifyRelayedCall(req envelope.EnvelopingRequest, signature []byte) ([]byte, error) {
	arg, _, err := requestTuple(req, "", "")
	if err != nil {
		return nil, err
	}
	contract := RelayVerifier
	if req.IsDeploy() {
		contract = DeployVerifier
	}
	return encode(contract, "verifyRelayedCall", arg, nonNilBytes(signature))
}

func EncodeForwarderNonce() ([]byte, error) {
	return encode(IForwarder, "nonce")
}

func DecodeForwarderNonce(data []byte) (*big.Int, error) {
	return decodeUint(IForwarder, "nonce", data)
}

func EncodeFactoryNonce(from common.Address) ([]byte, error) {
	return encode(SmartWalletFactory, "nonce", from)
}

func DecodeFactoryNonce(data []byte) (*big.Int, error) {
	return decodeUint(SmartWalletFactory, "nonce", data)
}

func EncodeGetOwner() ([]byte, error) {
	return encode(IForwarder, "getOwner")
}

func DecodeGetOwner(data []byte) (common.Hash, error) {
	out, err := unpack(IForwarder, "getOwner", data)
	if err != nil {
		return common.Hash{}, err
	}
	owner, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("contracts: getOwner: unexpected type %T", out[0])
	}
	return common.Hash(owner), nil
}

func EncodeTransfer(recipient common.Address, amount *big.Int) ([]byte, error) {
	return encode(IERC20, "transfer", recipient, amount)
}

func EncodeGetRelayInfo(manager common.Address) ([]byte, error) {
	return encode(RelayHub, "getRelayInfo", manager)
}

func DecodeGetRelayInfo(data []byte) (envelope.RelayManagerData, error) {
	out, err := unpack(RelayHub, "getRelayInfo", data)
	if err != nil {
		return envelope.RelayManagerData{}, err
	}
	info, ok := abi.ConvertType(out[0], new(RelayManagerDataABI)).(*RelayManagerDataABI)
	if !ok {
		return envelope.RelayManagerData{}, fmt.Errorf("contracts: getRelayInfo: unexpected type %T", out[0])
	}
	return envelope.RelayManagerData{
		Manager:         info.Manager,
		URL:             info.Url,
		CurrentlyStaked: info.CurrentlyStaked,
		Registered:      info.Registered,
	}, nil
}

func EncodeGetSmartWalletAddress(owner, recoverer common.Address, index *big.Int) ([]byte, error) {
	return encode(SmartWalletFactory, "getSmartWalletAddress", owner, recoverer, index)
}

func DecodeGetSmartWalletAddress(data []byte) (common.Address, error) {
	out, err := unpack(SmartWalletFactory, "getSmartWalletAddress", data)
	if err != nil {
		return common.Address{}, err
	}
	address, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("contracts: getSmartWalletAddress: unexpected type %T", out[0])
	}
	return address, nil
}

func encode(contract, method string, args ...interface{}) ([]byte, error) {
	data, err := registry.MustGet(contract).Encode(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contracts: %s.%s: %w", contract, method, err)
	}
	return data, nil
}

func unpack(contract, method string, data []byte) ([]interface{}, error) {
	out, err := registry.MustGet(contract).ABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("contracts: %s.%s: %w", contract, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contracts: %s.%s: empty result", contract, method)
	}
	return out, nil
}

func decodeUint(contract, method string, data []byte) (*big.Int, error) {
	out, err := unpack(contract, method, data)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("contracts: %s.%s: unexpected type %T", contract, method, out[0])
	}
	return v, nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
