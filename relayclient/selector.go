package relayclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
)

// selectNext returns the first candidate, in order, that is not in skip and
// reports itself ready on relayHub. Candidates that fail to answer, serve
// another hub or are unknown to the hub contract are passed over. It reports
// false once the list is exhausted.
func (c *Client) selectNext(ctx context.Context, log *slog.Logger, relayHub common.Address, candidates []string, skip map[string]struct{}) (*envelope.RelayInfo, bool) {
	for _, url := range candidates {
		if _, ok := skip[url]; ok {
			continue
		}
		if ctx.Err() != nil {
			return nil, false
		}

		hubInfo, err := c.Transport.GetChainInfo(ctx, url)
		if err != nil {
			log.WarnContext(ctx, "relay unavailable", slog.String("relay", url), slog.Any("error", err))
			continue
		}
		if hubInfo.RelayHubAddress != relayHub {
			log.WarnContext(ctx, "relay serves another hub",
				slog.String("relay", url),
				slog.String("hub", hubInfo.RelayHubAddress.Hex()),
			)
			continue
		}
		if !hubInfo.Ready {
			log.DebugContext(ctx, "relay not ready", slog.String("relay", url))
			continue
		}

		managerData, err := c.relayManagerData(ctx, relayHub, hubInfo.RelayManagerAddress)
		if err != nil {
			log.WarnContext(ctx, "relay manager lookup failed", slog.String("relay", url), slog.Any("error", err))
			continue
		}
		if managerData.URL != "" && !sameURL(managerData.URL, url) {
			log.WarnContext(ctx, "relay registered under another url",
				slog.String("relay", url),
				slog.String("registered", managerData.URL),
			)
		}

		log.DebugContext(ctx, "selected relay",
			slog.String("relay", url),
			slog.String("worker", hubInfo.RelayWorkerAddress.Hex()),
		)
		return &envelope.RelayInfo{
			URL:         url,
			HubInfo:     *hubInfo,
			ManagerData: managerData,
		}, true
	}
	return nil, false
}

func (c *Client) relayManagerData(ctx context.Context, relayHub, manager common.Address) (envelope.RelayManagerData, error) {
	data, err := contracts.EncodeGetRelayInfo(manager)
	if err != nil {
		return envelope.RelayManagerData{}, err
	}
	out, err := c.Provider.CallContract(ctx, ethereum.CallMsg{To: &relayHub, Data: data}, nil)
	if err != nil {
		return envelope.RelayManagerData{}, fmt.Errorf("relayclient: getRelayInfo(%s): %w", manager.Hex(), err)
	}
	return contracts.DecodeGetRelayInfo(out)
}

func sameURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
