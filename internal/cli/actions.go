package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/clinicore/go-clinic-client/clinic"
	"github.com/clinicore/go-clinic-client/internal/config"
	"github.com/clinicore/go-clinic-client/internal/utils"
	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/notify"
	"github.com/clinicore/go-clinic-client/querycache"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
	"github.com/clinicore/go-clinic-client/tokenstore/filestore"
	"github.com/clinicore/go-clinic-client/tokenstore/memstore"
	"github.com/clinicore/go-clinic-client/tokenstore/redisstore"
	"github.com/clinicore/go-clinic-client/transport"
)

// env bundles everything a command needs. It is rebuilt per invocation;
// session state survives runs through the durable token backend.
type env struct {
	cfg    config.Config
	logger zerolog.Logger
	tokens *tokenstore.Manager
	sess   *session.Store
	auth   *clinic.AuthClient
	api    *clinic.Client
}

func buildEnv() (*env, error) {
	cfg := config.New()
	logger := newLogger(cfg.GetLogLevel())

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	tokens := tokenstore.NewManager(backend)
	sess := session.NewStore(tokens, session.WithLogger(logger))
	notifier := notify.NewDeduped(notify.Log{Logger: logger})

	auth := clinic.NewAuthClient(cfg.GetBaseURL(), tokens, sess, clinic.WithAuthLogger(logger))
	chain := transport.NewChain(tokens, sess, auth,
		transport.WithLogger(logger),
		transport.WithNotifier(notifier),
	)
	httpClient := transport.NewHTTPClient(chain, cfg.GetRequestTimeout())
	cache := querycache.New(querycache.WithDefaultTTL(cfg.GetCacheTTL()))
	pipe := mutation.NewPipeline(httpClient, cfg.GetBaseURL(), tokens, sess, cache,
		mutation.WithNotifier(notifier),
		mutation.WithLogger(logger),
	)

	sess.Rehydrate()

	return &env{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		sess:   sess,
		auth:   auth,
		api:    clinic.NewClient(pipe),
	}, nil
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsed).With().Timestamp().Logger()
}

func newBackend(cfg config.Config, logger zerolog.Logger) (tokenstore.Backend, error) {
	if addr := cfg.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return redisstore.New(client, cfg.GetRedisPrefix()), nil
	}

	secret := cfg.GetTokenFileSecret()
	if secret == "" {
		logger.Warn().Msg("TOKEN_FILE_SECRET not set, session will not survive this process")
		return memstore.New(), nil
	}
	path := cfg.GetTokenFilePath()
	if path == "" {
		var err error
		path, err = filestore.DefaultPath(cfg.GetAppName())
		if err != nil {
			return nil, err
		}
	}
	return filestore.New(path, secret)
}

func loginAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}

	password := c.String("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		password = strings.TrimSpace(line)
	}

	user, err := e.auth.Login(c.Context, c.String("email"), password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("Logged in as %s (%s)\n", user.FullName(), user.Role)
	return nil
}

func logoutAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	if err := e.auth.Logout(c.Context); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func whoamiAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	state := e.sess.State()
	if !e.sess.IsAuthenticated() || state.User == nil {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s <%s> role=%s\n", state.User.FullName(), state.User.Email, state.User.Role)
	if tokens := e.tokens.Tokens(); tokens != nil {
		fmt.Printf("Access token expires in %s\n", tokens.ExpiresIn.Round(time.Second))
	}
	return nil
}

func patientsListAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	patients, err := e.api.Patients.List(c.Context, clinic.ListFilter{
		Search: c.String("search"),
		Page:   c.Int("page"),
	})
	if err != nil {
		return err
	}
	for _, p := range patients {
		fmt.Printf("%s  %s %s  %s\n", p.ID, p.FirstName, p.LastName, p.Email)
	}
	return nil
}

func patientsCreateAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	patient, err := e.api.Patients.Create(c.Context, clinic.PatientInput{
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
		Email:     c.String("email"),
		Phone:     c.String("phone"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created patient %s\n", patient.ID)
	return nil
}

func appointmentsListAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	filter := clinic.ListFilter{Status: c.String("status")}
	if from := c.Timestamp("from"); from != nil && !from.IsZero() {
		filter.From = utils.Ptr(*from)
	}
	if to := c.Timestamp("to"); to != nil && !to.IsZero() {
		filter.To = utils.Ptr(*to)
	}
	appointments, err := e.api.Appointments.List(c.Context, filter)
	if err != nil {
		return err
	}
	for _, a := range appointments {
		fmt.Printf("%s  %s → %s  patient=%s  %s\n",
			a.ID, a.StartsAt.Local().Format("2006-01-02 15:04"),
			a.EndsAt.Local().Format("15:04"), a.PatientID, a.Status)
	}
	return nil
}

func appointmentsBookAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	appointment, err := e.api.Appointments.Book(c.Context, clinic.AppointmentInput{
		PatientID:      c.String("patient"),
		PractitionerID: c.String("practitioner"),
		StartsAt:       *c.Timestamp("starts"),
		EndsAt:         *c.Timestamp("ends"),
		Reason:         c.String("reason"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Booked appointment %s\n", appointment.ID)
	return nil
}

func appointmentsCancelAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: clinicctl appointments cancel <appointment-id>")
	}
	e, err := buildEnv()
	if err != nil {
		return err
	}
	return e.api.Appointments.Cancel(c.Context, c.Args().First())
}

func templatesListAction(c *cli.Context) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	templates, err := e.api.Templates.List(c.Context, clinic.TemplateKind(c.String("kind")))
	if err != nil {
		return err
	}
	for _, t := range templates {
		fmt.Printf("%s  [%s]  %s\n", t.ID, t.Kind, t.Name)
	}
	return nil
}
