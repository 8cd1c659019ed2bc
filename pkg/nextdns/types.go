package nextdns

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ListType names one of the two per-profile domain lists.
type ListType string

const (
	Denylist  ListType = "denylist"
	Allowlist ListType = "allowlist"
)

// ListTypes is the fixed iteration order used wherever both lists are processed.
var ListTypes = []ListType{Denylist, Allowlist}

func ParseListType(s string) (ListType, error) {
	switch ListType(strings.ToLower(strings.TrimSpace(s))) {
	case Denylist:
		return Denylist, nil
	case Allowlist:
		return Allowlist, nil
	default:
		return "", fmt.Errorf("invalid list type %q (expected denylist or allowlist)", s)
	}
}

type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// DisplayName is the name when set, the id otherwise.
func (p Profile) DisplayName() string {
	if p.Name == "" {
		return p.ID
	}
	return p.Name
}

type DomainEntry struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type Rewrite struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
}

// IDItem is a list member that only carries an identifier (TLDs, blocklists, natives).
type IDItem struct {
	ID string `json:"id"`
}

// ActiveItem is a list member that can be toggled (parental services and categories).
type ActiveItem struct {
	ID     string `json:"id"`
	Active *bool  `json:"active,omitempty"`
}

type Security struct {
	ThreatIntelligenceFeeds *bool    `json:"threatIntelligenceFeeds,omitempty"`
	AIThreatDetection       *bool    `json:"aiThreatDetection,omitempty"`
	GoogleSafeBrowsing      *bool    `json:"googleSafeBrowsing,omitempty"`
	Cryptojacking           *bool    `json:"cryptojacking,omitempty"`
	DNSRebinding            *bool    `json:"dnsRebinding,omitempty"`
	IDNHomographs           *bool    `json:"idnHomographs,omitempty"`
	Typosquatting           *bool    `json:"typosquatting,omitempty"`
	DGA                     *bool    `json:"dga,omitempty"`
	NRD                     *bool    `json:"nrd,omitempty"`
	DDNS                    *bool    `json:"ddns,omitempty"`
	Parking                 *bool    `json:"parking,omitempty"`
	CSAM                    *bool    `json:"csam,omitempty"`
	TLDs                    []IDItem `json:"tlds,omitempty"`
}

type Privacy struct {
	Blocklists        []IDItem `json:"blocklists,omitempty"`
	Natives           []IDItem `json:"natives,omitempty"`
	DisguisedTrackers *bool    `json:"disguisedTrackers,omitempty"`
	AllowAffiliate    *bool    `json:"allowAffiliate,omitempty"`
}

type ParentalControl struct {
	Services              []ActiveItem    `json:"services,omitempty"`
	Categories            []ActiveItem    `json:"categories,omitempty"`
	SafeSearch            *bool           `json:"safeSearch,omitempty"`
	YoutubeRestrictedMode *bool           `json:"youtubeRestrictedMode,omitempty"`
	BlockBypass           *bool           `json:"blockBypass,omitempty"`
	Recreation            json.RawMessage `json:"recreation,omitempty"`
}

type LogsDrop struct {
	IP     *bool `json:"ip,omitempty" diff:"ip"`
	Domain *bool `json:"domain,omitempty" diff:"domain"`
}

type LogsSettings struct {
	Enabled   *bool     `json:"enabled,omitempty" diff:"enabled"`
	Drop      *LogsDrop `json:"drop,omitempty" diff:"drop"`
	Retention *int64    `json:"retention,omitempty" diff:"retention"`
	Location  string    `json:"location,omitempty" diff:"location"`
}

type BlockPageSettings struct {
	Enabled *bool `json:"enabled,omitempty" diff:"enabled"`
}

type PerformanceSettings struct {
	ECS             *bool `json:"ecs,omitempty" diff:"ecs"`
	CacheBoost      *bool `json:"cacheBoost,omitempty" diff:"cacheBoost"`
	CNAMEFlattening *bool `json:"cnameFlattening,omitempty" diff:"cnameFlattening"`
}

type Settings struct {
	Logs        *LogsSettings        `json:"logs,omitempty" diff:"logs"`
	BlockPage   *BlockPageSettings   `json:"blockPage,omitempty" diff:"blockPage"`
	Performance *PerformanceSettings `json:"performance,omitempty" diff:"performance"`
	Web3        *bool                `json:"web3,omitempty" diff:"web3"`
	BAV         *bool                `json:"bav,omitempty" diff:"bav"`
}

// ProfileData is a full configuration snapshot of one profile.
//
// Raw keeps the exact "data" object the API returned. The typed fields only cover
// what this tool knows about; anything newer is still visible through Raw.
type ProfileData struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name,omitempty"`
	Fingerprint     string           `json:"fingerprint,omitempty"`
	Security        *Security        `json:"security,omitempty"`
	Privacy         *Privacy         `json:"privacy,omitempty"`
	ParentalControl *ParentalControl `json:"parentalControl,omitempty"`
	Denylist        []DomainEntry    `json:"denylist,omitempty"`
	Allowlist       []DomainEntry    `json:"allowlist,omitempty"`
	Settings        *Settings        `json:"settings,omitempty"`
	Rewrites        []Rewrite        `json:"rewrites,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// DecodeProfileData parses a profile "data" object and keeps the raw bytes.
func DecodeProfileData(raw []byte) (*ProfileData, error) {
	var pd ProfileData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	pd.Raw = append(json.RawMessage(nil), raw...)
	return &pd, nil
}

// List returns the entries of the given domain list.
func (pd *ProfileData) List(lt ListType) []DomainEntry {
	if pd == nil {
		return nil
	}
	if lt == Allowlist {
		return pd.Allowlist
	}
	return pd.Denylist
}
