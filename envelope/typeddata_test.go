package envelope_test

import (
	"math/big"
	"testing"

	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/relaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedDataRelayRequest(t *testing.T) {
	typedData, err := envelope.TypedData(relaytest.RelayRequest(sender), envelope.Domain{ChainID: big.NewInt(33)})
	require.NoError(t, err)

	assert.Equal(t, envelope.PrimaryType, typedData.PrimaryType)
	assert.Equal(t, envelope.DefaultDomainName, typedData.Domain.Name)
	assert.Equal(t, envelope.DefaultDomainVersion, typedData.Domain.Version)
	assert.Equal(t, relaytest.Forwarder, *typedData.Domain.VerifyingContract)

	encodedType, err := typedData.Types.EncodeType(envelope.PrimaryType)
	require.NoError(t, err)
	assert.Equal(t,
		"RelayRequest(address relayHub,address from,address to,address tokenContract,uint256 value,uint256 gas,uint256 nonce,uint256 tokenAmount,uint256 tokenGas,bytes data,RelayData relayData)"+
			"RelayData(uint256 gasPrice,address feesReceiver,address callForwarder,address callVerifier)",
		encodedType)

	_, err = typedData.EncodeDigest()
	require.NoError(t, err)
}

func TestTypedDataDeployRequest(t *testing.T) {
	typedData, err := envelope.TypedData(relaytest.DeployRequest(sender), envelope.Domain{ChainID: big.NewInt(33)})
	require.NoError(t, err)

	assert.Equal(t, relaytest.Factory, *typedData.Domain.VerifyingContract)

	encodedType, err := typedData.Types.EncodeType(envelope.PrimaryType)
	require.NoError(t, err)
	assert.Equal(t,
		"RelayRequest(address relayHub,address from,address to,address tokenContract,address recoverer,uint256 value,uint256 nonce,uint256 tokenAmount,uint256 tokenGas,uint256 index,bytes data,RelayData relayData)"+
			"RelayData(uint256 gasPrice,address feesReceiver,address callForwarder,address callVerifier)",
		encodedType)

	_, err = typedData.EncodeDigest()
	require.NoError(t, err)
}

func TestTypedDataDigestBindsFields(t *testing.T) {
	domain := envelope.Domain{ChainID: big.NewInt(33)}
	digest := func(req envelope.EnvelopingRequest, domain envelope.Domain) []byte {
		typedData, err := envelope.TypedData(req, domain)
		require.NoError(t, err)
		d, err := typedData.EncodeDigest()
		require.NoError(t, err)
		return d
	}

	base := digest(relaytest.RelayRequest(sender), domain)
	assert.Equal(t, base, digest(relaytest.RelayRequest(sender), domain))

	assert.NotEqual(t, base, digest(envelope.WithTokenGas(relaytest.RelayRequest(sender), big.NewInt(1)), domain))
	assert.NotEqual(t, base, digest(envelope.WithFeesReceiver(relaytest.RelayRequest(sender), sender), domain))
	assert.NotEqual(t, base, digest(relaytest.RelayRequest(sender), envelope.Domain{ChainID: big.NewInt(31)}))
	assert.NotEqual(t, base, digest(relaytest.RelayRequest(sender), envelope.Domain{ChainID: big.NewInt(33), Version: "3"}))

	_, err := envelope.TypedData(relaytest.RelayRequest(sender), envelope.Domain{})
	assert.Error(t, err)
}
