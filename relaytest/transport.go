package relaytest

import (
	"context"
	"errors"
	"sync"

	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/relaytransport"
)

// ErrUnreachable is returned for relay URLs with no scripted status.
var ErrUnreachable = errors.New("relaytest: relay unreachable")

// SubmitFunc answers a relay submission with a raw signed transaction.
type SubmitFunc func(relayURL string, req *envelope.EnvelopingTxRequest) (string, error)

// FakeTransport is a scripted set of relay servers keyed by URL.
type FakeTransport struct {
	mu        sync.Mutex
	infos     map[string]*envelope.HubInfo
	errs      map[string]error
	submit    map[string]SubmitFunc
	queried   []string
	submitted []*envelope.EnvelopingTxRequest
	urls      []string
}

var _ relaytransport.Transport = (*FakeTransport)(nil)

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		infos:  map[string]*envelope.HubInfo{},
		errs:   map[string]error{},
		submit: map[string]SubmitFunc{},
	}
}

// SetInfo scripts the status served by relayURL.
func (f *FakeTransport) SetInfo(relayURL string, info *envelope.HubInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[relayURL] = info
}

// SetError makes status queries against relayURL fail with err.
func (f *FakeTransport) SetError(relayURL string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[relayURL] = err
}

// OnSubmit scripts the answer of relayURL to submissions.
func (f *FakeTransport) OnSubmit(relayURL string, fn SubmitFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submit[relayURL] = fn
}

// Queried returns the URLs whose status was queried, in order.
func (f *FakeTransport) Queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

// Submitted returns the requests submitted, in order.
func (f *FakeTransport) Submitted() []*envelope.EnvelopingTxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*envelope.EnvelopingTxRequest(nil), f.submitted...)
}

// SubmittedURLs returns the URLs submitted to, in order.
func (f *FakeTransport) SubmittedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func (f *FakeTransport) GetChainInfo(ctx context.Context, relayURL string) (*envelope.HubInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, relayURL)

	if err, ok := f.errs[relayURL]; ok {
		return nil, err
	}
	info, ok := f.infos[relayURL]
	if !ok {
		return nil, ErrUnreachable
	}
	out := *info
	return &out, nil
}

func (f *FakeTransport) RelayTransaction(ctx context.Context, relayURL string, req *envelope.EnvelopingTxRequest) (string, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	f.urls = append(f.urls, relayURL)
	fn, ok := f.submit[relayURL]
	f.mu.Unlock()

	if !ok {
		return "", &relaytransport.Error{URL: relayURL, Message: "no scripted response", Err: relaytransport.ErrRelayDeclined}
	}
	return fn(relayURL, req)
}
