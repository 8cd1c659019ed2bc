// Package domains applies one domain change to a set of profiles.
package domains

import (
	"context"
	"fmt"
	"strings"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/targets"
)

type Action string

const (
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAdd, ActionRemove, ActionEnable, ActionDisable:
		return a, nil
	default:
		return "", fmt.Errorf("invalid action %q (expected add, remove, enable or disable)", s)
	}
}

// Request describes one change. ProfileIDs empty means every profile.
type Request struct {
	Domain     string
	ListType   nextdns.ListType
	Action     Action
	ProfileIDs []string
	// OnResult, if set, is called after each profile.
	OnResult func(ProfileResult)
	Log      targets.Logger
}

type ProfileResult struct {
	ProfileID   string `json:"profileId" yaml:"profileId"`
	ProfileName string `json:"profileName" yaml:"profileName"`
	Success     bool   `json:"success" yaml:"success"`
	Message     string `json:"message,omitempty" yaml:"message,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type Result struct {
	Domain       string           `json:"domain" yaml:"domain"`
	ListType     nextdns.ListType `json:"listType" yaml:"listType"`
	Action       Action           `json:"action" yaml:"action"`
	Results      []ProfileResult  `json:"results" yaml:"results"`
	SuccessCount int              `json:"successCount" yaml:"successCount"`
	FailCount    int              `json:"failCount" yaml:"failCount"`
}

// Manage applies req to each target profile in turn. A failure on one profile
// never stops the others. Removing an entry that is already gone succeeds;
// enabling or disabling one fails.
func Manage(ctx context.Context, api nextdns.API, req Request) (*Result, error) {
	log := targets.LoggerOrNop(req.Log)
	if _, err := ParseAction(string(req.Action)); err != nil {
		return nil, err
	}
	if _, err := nextdns.ParseListType(string(req.ListType)); err != nil {
		return nil, err
	}

	profiles, err := targets.Resolve(ctx, api, req.ProfileIDs, 1)
	if err != nil {
		return nil, err
	}
	if missing := targets.Missing(req.ProfileIDs, profiles); len(missing) > 0 {
		log.Warnf("Ignoring unknown profiles: %s", strings.Join(missing, ", "))
	}

	res := &Result{Domain: req.Domain, ListType: req.ListType, Action: req.Action, Results: []ProfileResult{}}
	for _, p := range profiles {
		pr := apply(ctx, api, p, req)
		if pr.Success {
			res.SuccessCount++
			log.Infof("%s: %s", p.DisplayName(), pr.Message)
		} else {
			res.FailCount++
			log.Errorf("%s: %s", p.DisplayName(), pr.Error)
		}
		res.Results = append(res.Results, pr)
		if req.OnResult != nil {
			req.OnResult(pr)
		}
	}
	return res, nil
}

func apply(ctx context.Context, api nextdns.API, p nextdns.Profile, req Request) ProfileResult {
	pr := ProfileResult{ProfileID: p.ID, ProfileName: p.DisplayName()}

	var err error
	switch req.Action {
	case ActionAdd:
		err = api.AddDomainEntry(ctx, p.ID, req.ListType, req.Domain, true)
		pr.Message = "added"
	case ActionRemove:
		err = api.RemoveDomainEntry(ctx, p.ID, req.ListType, req.Domain)
		pr.Message = "removed"
		if nextdns.IsNotFound(err) {
			err = nil
			pr.Message = "not found (already removed)"
		}
	case ActionEnable, ActionDisable:
		err = api.UpdateDomainEntryStatus(ctx, p.ID, req.ListType, req.Domain, req.Action == ActionEnable)
		pr.Message = string(req.Action) + "d"
	}

	if err != nil {
		pr.Message = ""
		pr.Error = err.Error()
		return pr
	}
	pr.Success = true
	return pr
}
