package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/compasscal/compass/internal/adapter/google"
)

const (
	redirectPort = "8085"
	redirectURL  = "http://localhost:" + redirectPort + "/callback"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Google Calendar",
	Long: `Authenticate with Google Calendar using OAuth.

  1. Starts a local server to receive the OAuth callback
  2. Opens your browser to sign in with Google
  3. Saves the token to token_file for serve, watch and calendars`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, _ []string) error {
	config, err := google.OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("%w\n\nDownload an OAuth client secret from the Google Cloud console", err)
	}
	config.RedirectURL = redirectURL

	tok, err := getTokenViaLocalServer(cmd.Context(), config, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if err := google.SaveToken(cfg.TokenFile, tok); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Println("\nAuthentication successful.")
	fmt.Printf("Token saved to %s\n", cfg.TokenFile)
	fmt.Println("\nNext: 'compass watch' to subscribe to your primary calendar.")
	return nil
}

func getTokenViaLocalServer(ctx context.Context, config *oauth2.Config, authOpts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errMsg := r.URL.Query().Get("error")
			http.Error(w, "Authorization failed: "+errMsg, http.StatusBadRequest)
			errChan <- fmt.Errorf("authorization failed: %s", errMsg)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>compass</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
	<h1>Authorization successful</h1>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
		codeChan <- code
	})
	server := &http.Server{Addr: ":" + redirectPort, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := config.AuthCodeURL("state-token", authOpts...)

	fmt.Println("Opening browser for Google authorization...")
	if err := openBrowser(authURL); err != nil {
		fmt.Println("Couldn't open browser automatically.")
		fmt.Println("Please open this URL manually:")
		fmt.Println(authURL)
	}
	fmt.Println("Waiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("timeout waiting for authorization")
	}

	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
