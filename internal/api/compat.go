package api

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/cases"

	"github.com/DoyleJ11/whist-client/pkg/types"
)

// Versions of the server this client is built against.
const (
	ExpectedGame          = "whist"
	ExpectedCoreVersion   = "^0.9"
	ExpectedServerVersion = "^0.7"
)

// ServerInfo is what a server reports about itself.
type ServerInfo struct {
	Game          string
	CoreVersion   *semver.Version
	ServerVersion *semver.Version
}

// Requirement is what the client accepts from a server.
type Requirement struct {
	Game   string
	Core   *semver.Constraints
	Server *semver.Constraints
}

// NewRequirement parses the two version ranges, e.g. "^0.9".
func NewRequirement(game, core, server string) (Requirement, error) {
	c, err := semver.NewConstraint(core)
	if err != nil {
		return Requirement{}, fmt.Errorf("core version requirement %q: %w", core, err)
	}
	s, err := semver.NewConstraint(server)
	if err != nil {
		return Requirement{}, fmt.Errorf("server version requirement %q: %w", server, err)
	}
	return Requirement{Game: game, Core: c, Server: s}, nil
}

// MustRequirement is NewRequirement for compiled-in values.
func MustRequirement(game, core, server string) Requirement {
	req, err := NewRequirement(game, core, server)
	if err != nil {
		panic(err)
	}
	return req
}

// DefaultRequirement is the requirement this client ships with.
func DefaultRequirement() Requirement {
	return MustRequirement(ExpectedGame, ExpectedCoreVersion, ExpectedServerVersion)
}

// ParseServerInfo converts the wire document.
func ParseServerInfo(res types.InfoResponse) (ServerInfo, error) {
	core, err := semver.NewVersion(res.Info.WhistCore)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("whist-core %q: %w", res.Info.WhistCore, err)
	}
	server, err := semver.NewVersion(res.Info.WhistServer)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("whist-server %q: %w", res.Info.WhistServer, err)
	}
	return ServerInfo{Game: res.Info.Game, CoreVersion: core, ServerVersion: server}, nil
}

// CheckCompatibility matches the game name case-insensitively and both
// versions against their ranges, in that order. The first mismatch is
// returned as a *CompatibilityError.
func CheckCompatibility(info ServerInfo, req Requirement) error {
	fold := cases.Fold()
	if fold.String(info.Game) != cases.Fold().String(req.Game) {
		return &CompatibilityError{Field: FieldGame, Value: info.Game, Want: req.Game}
	}
	if !req.Core.Check(info.CoreVersion) {
		return &CompatibilityError{Field: FieldCoreVersion, Value: info.CoreVersion.String(), Want: req.Core.String()}
	}
	if !req.Server.Check(info.ServerVersion) {
		return &CompatibilityError{Field: FieldServerVersion, Value: info.ServerVersion.String(), Want: req.Server.String()}
	}
	return nil
}
