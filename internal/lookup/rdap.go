package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/providers"
)

// Registration is the registry section of a domain.
type Registration struct {
	domain.Registration
	RegistrarName string `json:"registrarName,omitempty"`
	Handle        string `json:"handle,omitempty"`
}

type rdapDomain struct {
	Handle      string       `json:"handle"`
	Status      []string     `json:"status"`
	Entities    []rdapEntity `json:"entities"`
	Nameservers []struct {
		LDHName string `json:"ldhName"`
	} `json:"nameservers"`
}

type rdapEntity struct {
	Roles      []string          `json:"roles"`
	VCardArray []json.RawMessage `json:"vcardArray"`
}

// transferLockStatuses are the EPP statuses (RDAP spelling, normalized) that
// block transfers.
var transferLockStatuses = map[string]bool{
	"clienttransferprohibited": true,
	"servertransferprohibited": true,
}

// Registration queries RDAP for the registrable domain of domainName.
func (c *Client) Registration(ctx context.Context, domainName string) (*Registration, error) {
	apex, err := publicsuffix.EffectiveTLDPlusOne(domainName)
	if err != nil {
		return nil, fmt.Errorf("registrable domain: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rdapBase+"/domain/"+apex, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := c.rdap.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap status %d", resp.StatusCode)
	}

	var rd rdapDomain
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rd); err != nil {
		return nil, fmt.Errorf("decode rdap: %w", err)
	}
	return rd.toRegistration(), nil
}

func (rd *rdapDomain) toRegistration() *Registration {
	out := &Registration{Handle: rd.Handle}

	for _, e := range rd.Entities {
		if hasRole(e.Roles, "registrar") {
			out.RegistrarName = vcardFN(e.VCardArray)
			break
		}
	}
	out.RegistrarProviderID = providers.RegistrarProvider(out.RegistrarName)

	for _, ns := range rd.Nameservers {
		if h := strings.TrimSuffix(strings.ToLower(ns.LDHName), "."); h != "" {
			out.Nameservers = append(out.Nameservers, h)
		}
	}

	locked := false
	for _, s := range rd.Status {
		out.Statuses = append(out.Statuses, s)
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(s))
		if transferLockStatuses[key] {
			locked = true
		}
	}
	if len(rd.Status) > 0 {
		out.TransferLock = &locked
	}
	return out
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

// vcardFN extracts the "fn" property of a jCard: ["vcard", [[name, params, type, value], ...]].
func vcardFN(card []json.RawMessage) string {
	if len(card) < 2 {
		return ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(card[1], &props); err != nil {
		return ""
	}
	for _, p := range props {
		if len(p) < 4 {
			continue
		}
		var name, value string
		if json.Unmarshal(p[0], &name) != nil || name != "fn" {
			continue
		}
		if json.Unmarshal(p[3], &value) == nil {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
