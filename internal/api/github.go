package api

import (
	"context"
	"net/http"

	"github.com/DoyleJ11/whist-client/internal/rest"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

// DefaultGitHubURL is where device codes are requested.
const DefaultGitHubURL = "https://github.com/"

// DeviceCode is a started device flow: the user enters UserCode at
// VerificationURI, then the client swaps DeviceCode for a token.
type DeviceCode struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	Interval        int
}

// GitHubService calls the GitHub OAuth routes.
type GitHubService struct {
	conn *rest.Client
}

func NewGitHubService(baseURL string, opts ...Option) *GitHubService {
	o := buildOptions(opts)
	return &GitHubService{conn: rest.New(baseURL, o.restOptions()...)}
}

// RequestDeviceCode starts a device flow for the OAuth app clientID.
func (g *GitHubService) RequestDeviceCode(ctx context.Context, clientID string) (DeviceCode, error) {
	var res types.DeviceCodeResponse
	err := g.conn.DoJSON(ctx, http.MethodPost, "login/device/code", nil,
		rest.JSON(types.DeviceCodeRequest{ClientID: clientID}), &res)
	if err != nil {
		if isDecode(err) {
			return DeviceCode{}, &DeviceFlowError{Kind: DeviceMalformed, Err: err}
		}
		return DeviceCode{}, &DeviceFlowError{Kind: DeviceRequest, Err: err}
	}
	return DeviceCode{
		DeviceCode:      res.DeviceCode,
		UserCode:        res.UserCode,
		VerificationURI: res.VerificationURI,
		ExpiresIn:       res.ExpiresIn,
		Interval:        res.Interval,
	}, nil
}
