package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const gitHubUserURL = "https://api.github.com/user"

// GitHubUser is the part of the GitHub /user response an account needs.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID        int64  `json:"id"`    // stable numeric id; accounts are keyed on it
	Login     string `json:"login"` // may change; becomes the (lowercased) username
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider exchanges an OAuth authorization code for the GitHub
// profile of the user who granted it.
//
// CODE EXCHANGE FLOW (the dashboard does steps 1-3):
//  1. The browser is sent to GitHub's authorize page with CLIENT_ID.
//  2. The user approves and GitHub redirects to REDIRECT_URI with ?code=...
//  3. The dashboard POSTs {"code": "..."} to /authenticate.
//  4. Exchange trades the code for an access token, server-to-server,
//     using CLIENT_SECRET. The access token never leaves this process.
//  5. Exchange calls GET /user with that token and returns the profile.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider creates a GitHubProvider with the OAuth app credentials.
// redirectURL must match the app's "Authorization callback URL" exactly.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		userURL: gitHubUserURL,
	}
}

// newGitHubProviderWithEndpoints points the provider at a fake GitHub.
func newGitHubProviderWithEndpoints(tokenURL, userURL string) *GitHubProvider {
	p := NewGitHubProvider("client", "secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   tokenURL,
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userURL = userURL
	return p
}

// Exchange trades code for the GitHub profile of its owner.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	if code == "" {
		return nil, errors.New("auth: empty OAuth code")
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <access token>" to each call.
	client := p.config.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if gh.ID == 0 || gh.Login == "" {
		return nil, errors.New("auth: GitHub returned an incomplete profile")
	}
	return &gh, nil
}
