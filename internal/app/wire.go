package app

import (
	"io"
	"net/http"
	"path/filepath"

	"hearth/internal/directory"
	"hearth/internal/domain"
	fanoutsvc "hearth/internal/services/fanout"
	identitysvc "hearth/internal/services/identity"
	mediasvc "hearth/internal/services/media"
	messagesvc "hearth/internal/services/message"
	prekeysvc "hearth/internal/services/prekey"
	sessionsvc "hearth/internal/services/session"
	verifysvc "hearth/internal/services/verify"
	"hearth/internal/store"
)

// App bundles all stores, services, and clients for the CLI.
type App struct {
	Identity  domain.IdentityService
	Prekeys   domain.PrekeyService
	Sessions  domain.SessionManager
	Messages  domain.MessageCipher
	Media     domain.MediaCipher
	Verify    domain.VerificationEngine
	Fanout    domain.FanoutCoordinator
	Directory *directory.Client

	db *store.LevelDB
}

// New constructs the dependency graph from cfg. Logs go to logW.
func New(cfg Config, logW io.Writer) (*App, error) {
	log, err := NewLogger(logW, "HRTH", cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenLevelDB(filepath.Join(cfg.Home, "db"))
	if err != nil {
		return nil, err
	}

	identityStore := store.NewIdentityStore(db)
	prekeyStore := store.NewPrekeyStore(db)
	sessionStore := store.NewSessionStore(db)

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var dir *directory.Client
	if cfg.DirectoryURL != "" {
		dir = directory.NewClient(cfg.DirectoryURL, httpClient)
	}

	identitySvc := identitysvc.New(identityStore, log)
	prekeySvc := prekeysvc.New(identitySvc, prekeyStore, log)
	sessionSvc := sessionsvc.New(identitySvc, sessionStore, prekeyStore, cfg.SkipWindow, log)

	// The message cipher needs a bundle provider for lazy session
	// establishment; without a directory URL it can only decrypt and
	// reply on existing sessions.
	var provider domain.PrekeyBundleProvider
	if dir != nil {
		provider = dir
	}
	messageSvc := messagesvc.New(identitySvc, sessionSvc, provider, log)
	mediaSvc := mediasvc.New(messageSvc, log)
	verifySvc := verifysvc.New(identitySvc, sessionSvc, log)
	fanoutSvc := fanoutsvc.New(messageSvc, log)

	return &App{
		Identity:  identitySvc,
		Prekeys:   prekeySvc,
		Sessions:  sessionSvc,
		Messages:  messageSvc,
		Media:     mediaSvc,
		Verify:    verifySvc,
		Fanout:    fanoutSvc,
		Directory: dir,
		db:        db,
	}, nil
}

// Close releases the underlying database.
func (a *App) Close() error { return a.db.Close() }
