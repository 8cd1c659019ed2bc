package domains

import (
	"context"
	"errors"
	"testing"

	"github.com/nxsync/nxsync/internal/fakeapi"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoProfiles() *fakeapi.Fake {
	return fakeapi.New().
		AddProfile(nextdns.Profile{ID: "p1", Name: "Home"}, "").
		AddProfile(nextdns.Profile{ID: "p2", Name: "Kids"}, "").
		SetList("p1", nextdns.Denylist, nextdns.DomainEntry{ID: "ads.example.com", Active: true})
}

func TestRemoveNotFoundIsSuccess(t *testing.T) {
	f := twoProfiles()
	res, err := Manage(context.Background(), f, Request{Domain: "ads.example.com", ListType: nextdns.Denylist, Action: ActionRemove})
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Zero(t, res.FailCount)
	assert.Equal(t, "removed", res.Results[0].Message)
	assert.Equal(t, ProfileResult{ProfileID: "p2", ProfileName: "Kids", Success: true, Message: "not found (already removed)"}, res.Results[1])
	assert.Empty(t, f.Entries("p1", nextdns.Denylist))
}

func TestEnableDisableNotFoundIsFailure(t *testing.T) {
	for _, action := range []Action{ActionEnable, ActionDisable} {
		t.Run(string(action), func(t *testing.T) {
			f := twoProfiles()
			res, err := Manage(context.Background(), f, Request{Domain: "ads.example.com", ListType: nextdns.Denylist, Action: action})
			require.NoError(t, err)

			assert.Equal(t, 1, res.SuccessCount)
			assert.Equal(t, 1, res.FailCount)
			assert.True(t, res.Results[0].Success)
			assert.Equal(t, action == ActionEnable, f.Entries("p1", nextdns.Denylist)[0].Active)
			assert.False(t, res.Results[1].Success)
			assert.NotEmpty(t, res.Results[1].Error)
		})
	}
}

func TestAddContinuesAfterFailure(t *testing.T) {
	f := twoProfiles().Fail("AddDomainEntry", "p1", errors.New("boom"), 1)
	var seen []string
	res, err := Manage(context.Background(), f, Request{
		Domain:   "new.example.com",
		ListType: nextdns.Allowlist,
		Action:   ActionAdd,
		OnResult: func(pr ProfileResult) { seen = append(seen, pr.ProfileID) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, seen)
	assert.Equal(t, 1, res.FailCount)
	assert.Equal(t, "boom", res.Results[0].Error)
	assert.Equal(t, []nextdns.DomainEntry{{ID: "new.example.com", Active: true}}, f.Entries("p2", nextdns.Allowlist))
}

func TestManageTargets(t *testing.T) {
	ctx := context.Background()
	f := twoProfiles()

	res, err := Manage(ctx, f, Request{Domain: "x.com", ListType: nextdns.Denylist, Action: ActionAdd, ProfileIDs: []string{"p2"}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "p2", res.Results[0].ProfileID)

	_, err = Manage(ctx, f, Request{Domain: "x.com", ListType: nextdns.Denylist, Action: ActionAdd, ProfileIDs: []string{"zz"}})
	assert.ErrorIs(t, err, targets.ErrProfilesNotFound)

	_, err = Manage(ctx, f, Request{Domain: "x.com", ListType: nextdns.Denylist, Action: "toggle"})
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Disable ")
	require.NoError(t, err)
	assert.Equal(t, ActionDisable, a)
	_, err = ParseAction("delete")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ads.example.com", want: "ads.example.com"},
		{in: "  Ads.Example.COM. ", want: "ads.example.com"},
		{in: "https://tracker.example.co.uk:8443/pixel.gif", want: "tracker.example.co.uk"},
		{in: "example.org/path?q=1", want: "example.org"},
		{in: "example.org:8080", want: "example.org"},
		{in: "*.doubleclick.net", want: "*.doubleclick.net"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "", wantErr: true},
		{in: "com", wantErr: true},
		{in: "co.uk", wantErr: true},
		{in: "bad..example.com", wantErr: true},
		{in: "ads.*.example.com", wantErr: true},
		{in: "192.168.1.1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
