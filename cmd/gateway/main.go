package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/finport/go-oidc-gateway/accounts"
	"github.com/finport/go-oidc-gateway/authn"
	"github.com/finport/go-oidc-gateway/authn/flowrepo"
	"github.com/finport/go-oidc-gateway/internal/config"
	"github.com/finport/go-oidc-gateway/lifecycle"
	"github.com/finport/go-oidc-gateway/server"
	"github.com/finport/go-oidc-gateway/sessions"
	"github.com/finport/go-oidc-gateway/tenancy"
	"github.com/finport/go-oidc-gateway/token"
	"github.com/finport/go-oidc-gateway/token/keys"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running gateway: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Gateway stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	handler, err := buildServer(context.Background(), c)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(ctx context.Context, c config.Config) (*server.Server, error) {
	provider, err := authn.NewOIDCProvider(ctx, c.GetIssuer(), c.GetClientID(), c.GetClientSecret(), c.GetRedirectURI(), c.GetScopes(), c.GetHTTPTimeout())
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	metadata := provider.Metadata()

	keyStore := keys.NewStore()
	if metadata.JWKSURI != "" {
		jwks, err := keys.Fetch(&http.Client{Timeout: c.GetHTTPTimeout()}, metadata.JWKSURI)
		if err != nil {
			return nil, fmt.Errorf("jwks fetch: %w", err)
		}
		keyStore.Replace(jwks)
	}

	refresher := lifecycle.NewRefresher(
		metadata.TokenEndpoint,
		c.GetClientID(),
		c.GetClientSecret(),
		strings.Join(c.GetScopes(), " "),
		c.GetHTTPTimeout(),
	)

	sessionRepo := sessions.NewInMemoryRepo()

	authenticator, err := authn.NewAuthenticator(authn.Deps{
		Provider:  provider,
		Sessions:  sessionRepo,
		Flows:     flowrepo.NewInMemoryRepo(),
		Refresher: refresher,
	}, c)
	if err != nil {
		return nil, fmt.Errorf("authenticator: %w", err)
	}

	var accountsClient *accounts.Client
	if url := c.GetAccountsAPIURL(); url != "" {
		accountsClient = accounts.New(url, c.GetHTTPTimeout())
	}

	return server.New(c, server.Deps{
		Authenticator: authenticator,
		Validator:     token.NewValidator(keyStore, c.GetIssuer(), c.GetAudience()),
		Guard:         tenancy.NewGuard(c.IsMultitenant()),
		Sessions:      sessionRepo,
		Accounts:      accountsClient,
	})
}

func listenAndServe(httpServer *http.Server) error {
	log.Printf("Gateway listening on %s\n", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
