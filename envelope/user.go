package envelope

import (
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
)

// UserRequest is a request as authored by a caller, before the relay client
// fills in nonce, gas, fees and the relay hub. Nil means "not supplied".
//
// A request is a deploy when Recoverer or Index is set.
type UserRequest struct {
	Request   UserRequestBody
	RelayData UserRelayData
}

type UserRequestBody struct {
	RelayHub      *common.Address
	From          *common.Address
	To            *common.Address
	TokenContract *common.Address
	Value         *big.Int
	Nonce         *big.Int
	TokenAmount   *big.Int
	// Data is required; an empty non-nil slice is a call with no calldata.
	Data []byte

	Gas *big.Int

	Index     *big.Int
	Recoverer *common.Address
}

type UserRelayData struct {
	GasPrice      *big.Int
	CallForwarder *common.Address
	CallVerifier  *common.Address
}

func (u UserRequest) IsDeploy() bool {
	return u.Request.Recoverer != nil || u.Request.Index != nil
}
