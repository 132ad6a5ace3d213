package contracts_test

import (
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/ethcoder"
	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/relaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sender = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestRegistry(t *testing.T) {
	for _, name := range []string{
		contracts.RelayHub, contracts.RelayVerifier, contracts.DeployVerifier,
		contracts.IForwarder, contracts.SmartWalletFactory, contracts.IERC20,
	} {
		_, ok := contracts.GetContractArtifact(name)
		assert.True(t, ok, name)
	}

	assert.Equal(t, ethcoder.Keccak256([]byte("transfer(address,uint256)"))[:4], contracts.MethodID(contracts.IERC20, "transfer"))
	assert.Equal(t, ethcoder.Keccak256([]byte("nonce()"))[:4], contracts.MethodID(contracts.IForwarder, "nonce"))
	assert.Equal(t, ethcoder.Keccak256([]byte("getRelayInfo(address)"))[:4], contracts.MethodID(contracts.RelayHub, "getRelayInfo"))
}

func TestEncodeHubCall(t *testing.T) {
	sig := common.FromHex("0xabcdef")
	hub, _ := contracts.GetContractArtifact(contracts.RelayHub)

	data, err := contracts.EncodeHubCall(relaytest.RelayRequest(sender), sig)
	require.NoError(t, err)
	assert.Equal(t, hub.ABI.Methods["relayCall"].ID, data[:4])
	assert.Equal(t,
		ethcoder.Keccak256([]byte("relayCall(((address,address,address,address,uint256,uint256,uint256,uint256,uint256,bytes),(uint256,address,address,address)),bytes)"))[:4],
		data[:4])

	args, err := hub.ABI.Methods["relayCall"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, sig, args[1])

	data, err = contracts.EncodeHubCall(relaytest.DeployRequest(sender), sig)
	require.NoError(t, err)
	assert.Equal(t, hub.ABI.Methods["deployCall"].ID, data[:4])

	again, err := contracts.EncodeHubCall(relaytest.DeployRequest(sender), sig)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	incomplete := relaytest.RelayRequest(sender)
	incomplete.Request.TokenGas = nil
	_, err = contracts.EncodeHubCall(incomplete, sig)
	assert.Error(t, err)
}

func TestEncodeVerifyRelayedCall(t *testing.T) {
	relayVerifier, _ := contracts.GetContractArtifact(contracts.RelayVerifier)
	deployVerifier, _ := contracts.GetContractArtifact(contracts.DeployVerifier)

	data, err := contracts.EncodeVerifyRelayedCall(relaytest.RelayRequest(sender), nil)
	require.NoError(t, err)
	assert.Equal(t, relayVerifier.ABI.Methods["verifyRelayedCall"].ID, data[:4])

	data, err = contracts.EncodeVerifyRelayedCall(relaytest.DeployRequest(sender), nil)
	require.NoError(t, err)
	assert.Equal(t, deployVerifier.ABI.Methods["verifyRelayedCall"].ID, data[:4])
	assert.NotEqual(t, relayVerifier.ABI.Methods["verifyRelayedCall"].ID, data[:4])
}

func TestDecodeResults(t *testing.T) {
	out, err := relaytest.PackOutputs(contracts.IForwarder, "nonce", big.NewInt(42))
	require.NoError(t, err)
	nonce, err := contracts.DecodeForwarderNonce(out)
	require.NoError(t, err)
	assert.Equal(t, int64(42), nonce.Int64())

	owner := ethcoder.Keccak256Hash(sender.Bytes())
	out, err = relaytest.PackOutputs(contracts.IForwarder, "getOwner", [32]byte(owner))
	require.NoError(t, err)
	decodedOwner, err := contracts.DecodeGetOwner(out)
	require.NoError(t, err)
	assert.Equal(t, owner, decodedOwner)

	wallet := common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	out, err = relaytest.PackOutputs(contracts.SmartWalletFactory, "getSmartWalletAddress", wallet)
	require.NoError(t, err)
	decodedWallet, err := contracts.DecodeGetSmartWalletAddress(out)
	require.NoError(t, err)
	assert.Equal(t, wallet, decodedWallet)

	manager := envelope.RelayManagerData{
		Manager:         common.HexToAddress("0xa2"),
		URL:             "https://relay.example.com",
		CurrentlyStaked: true,
		Registered:      true,
	}
	out, err = relaytest.ReturnRelayInfo(manager)(ethereum.CallMsg{})
	require.NoError(t, err)
	decodedManager, err := contracts.DecodeGetRelayInfo(out)
	require.NoError(t, err)
	assert.Equal(t, manager, decodedManager)

	_, err = contracts.DecodeForwarderNonce([]byte{0x01})
	assert.Error(t, err)
}
