package envelope

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
)

// Wire format accepted by relay servers: numbers as decimal strings, addresses
// as checksummed hex, byte strings as 0x-prefixed hex. The request variant is
// discriminated by the presence of "recoverer".

type requestJSON struct {
	RelayHub      string `json:"relayHub"`
	From          string `json:"from"`
	To            string `json:"to"`
	TokenContract string `json:"tokenContract"`
	Value         string `json:"value"`
	Gas           string `json:"gas,omitempty"`
	Nonce         string `json:"nonce"`
	TokenAmount   string `json:"tokenAmount"`
	TokenGas      string `json:"tokenGas"`
	Recoverer     string `json:"recoverer,omitempty"`
	Index         string `json:"index,omitempty"`
	Data          string `json:"data"`
}

type relayDataJSON struct {
	GasPrice      string `json:"gasPrice"`
	FeesReceiver  string `json:"feesReceiver"`
	CallForwarder string `json:"callForwarder"`
	CallVerifier  string `json:"callVerifier"`
}

type envelopingRequestJSON struct {
	Request   requestJSON   `json:"request"`
	RelayData relayDataJSON `json:"relayData"`
}

type metadataJSON struct {
	RelayHubAddress string `json:"relayHubAddress"`
	Signature       string `json:"signature"`
	RelayMaxNonce   uint64 `json:"relayMaxNonce"`
}

type envelopingTxRequestJSON struct {
	RelayRequest envelopingRequestJSON `json:"relayRequest"`
	Metadata     metadataJSON          `json:"metadata"`
}

func (t EnvelopingTxRequest) MarshalJSON() ([]byte, error) {
	if t.RelayRequest == nil {
		return nil, fmt.Errorf("envelope: nil relay request")
	}
	return json.Marshal(envelopingTxRequestJSON{
		RelayRequest: encodeRequest(t.RelayRequest),
		Metadata: metadataJSON{
			RelayHubAddress: t.Metadata.RelayHubAddress.Hex(),
			Signature:       hexutil.Encode(t.Metadata.Signature),
			RelayMaxNonce:   t.Metadata.RelayMaxNonce,
		},
	})
}

func (t *EnvelopingTxRequest) UnmarshalJSON(data []byte) error {
	var raw envelopingTxRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("envelope: enveloping tx request: %w", err)
	}

	req, err := decodeRequest(raw.RelayRequest)
	if err != nil {
		return err
	}
	hub, err := parseAddress("relayHubAddress", raw.Metadata.RelayHubAddress)
	if err != nil {
		return err
	}
	sig, err := parseBytes("signature", raw.Metadata.Signature)
	if err != nil {
		return err
	}

	*t = EnvelopingTxRequest{
		RelayRequest: req,
		Metadata: EnvelopingMetadata{
			RelayHubAddress: hub,
			Signature:       sig,
			RelayMaxNonce:   raw.Metadata.RelayMaxNonce,
		},
	}
	return nil
}

func encodeRequest(req EnvelopingRequest) envelopingRequestJSON {
	c := req.Common()
	d := req.GetRelayData()

	out := envelopingRequestJSON{
		Request: requestJSON{
			RelayHub:      c.RelayHub.Hex(),
			From:          c.From.Hex(),
			To:            c.To.Hex(),
			TokenContract: c.TokenContract.Hex(),
			Value:         decimal(c.Value),
			Nonce:         decimal(c.Nonce),
			TokenAmount:   decimal(c.TokenAmount),
			TokenGas:      decimal(c.TokenGas),
			Data:          hexutil.Encode(c.Data),
		},
		RelayData: relayDataJSON{
			GasPrice:      decimal(d.GasPrice),
			FeesReceiver:  d.FeesReceiver.Hex(),
			CallForwarder: d.CallForwarder.Hex(),
			CallVerifier:  d.CallVerifier.Hex(),
		},
	}

	switch r := req.(type) {
	case RelayRequest:
		out.Request.Gas = decimal(r.Request.Gas)
	case DeployRequest:
		out.Request.Recoverer = r.Request.Recoverer.Hex()
		out.Request.Index = decimal(r.Request.Index)
	}
	return out
}

func decodeRequest(raw envelopingRequestJSON) (EnvelopingRequest, error) {
	var (
		c   CommonBody
		d   RelayData
		err error
	)
	r := raw.Request

	if c.RelayHub, err = parseAddress("relayHub", r.RelayHub); err != nil {
		return nil, err
	}
	if c.From, err = parseAddress("from", r.From); err != nil {
		return nil, err
	}
	if c.To, err = parseOptionalAddress("to", r.To); err != nil {
		return nil, err
	}
	if c.TokenContract, err = parseOptionalAddress("tokenContract", r.TokenContract); err != nil {
		return nil, err
	}
	if c.Value, err = parseQuantity("value", r.Value); err != nil {
		return nil, err
	}
	if c.Nonce, err = parseQuantity("nonce", r.Nonce); err != nil {
		return nil, err
	}
	if c.TokenAmount, err = parseQuantity("tokenAmount", r.TokenAmount); err != nil {
		return nil, err
	}
	if c.TokenGas, err = parseQuantity("tokenGas", r.TokenGas); err != nil {
		return nil, err
	}
	if c.Data, err = parseBytes("data", r.Data); err != nil {
		return nil, err
	}

	rd := raw.RelayData
	if d.GasPrice, err = parseQuantity("gasPrice", rd.GasPrice); err != nil {
		return nil, err
	}
	if d.FeesReceiver, err = parseOptionalAddress("feesReceiver", rd.FeesReceiver); err != nil {
		return nil, err
	}
	if d.CallForwarder, err = parseAddress("callForwarder", rd.CallForwarder); err != nil {
		return nil, err
	}
	if d.CallVerifier, err = parseAddress("callVerifier", rd.CallVerifier); err != nil {
		return nil, err
	}

	if r.Recoverer != "" {
		recoverer, err := parseOptionalAddress("recoverer", r.Recoverer)
		if err != nil {
			return nil, err
		}
		index, err := parseQuantity("index", r.Index)
		if err != nil {
			return nil, err
		}
		return DeployRequest{
			Request:   DeployRequestBody{CommonBody: c, Index: index, Recoverer: recoverer},
			RelayData: d,
		}, nil
	}

	gas, err := parseQuantity("gas", r.Gas)
	if err != nil {
		return nil, err
	}
	return RelayRequest{
		Request:   RelayRequestBody{CommonBody: c, Gas: gas},
		RelayData: d,
	}, nil
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("envelope: %s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseOptionalAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(name, s)
}

// parseQuantity parses a decimal or 0x-prefixed hex string. The empty string
// parses as zero.
func parseQuantity(name, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	var (
		v  *big.Int
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("envelope: %s: invalid number %q", name, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("envelope: %s: negative number %q", name, s)
	}
	return v, nil
}

func parseBytes(name, s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("envelope: %s: %w", name, err)
	}
	return b, nil
}
