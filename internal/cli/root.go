// Package cli implements the wikiconf command line tool, which reads and
// edits configuration objects kept in a SQL document store.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-document-config/configsource"
	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/document/sqlstore"
	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/execution"
	"github.com/goliatone/go-document-config/pkg/di"
	"github.com/goliatone/go-document-config/reference"
)

const defaultDocument = "XWiki.XWikiPreferences"

type app struct {
	v      *viper.Viper
	cfg    Config
	logger *slog.Logger

	configFile string
	document   string
	class      string
}

// NewRootCommand builds the wikiconf command tree. Each call gets its own
// viper instance so commands can be built and run side by side.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "wikiconf",
		Short: "Read and edit wiki configuration objects",
		Long: `Read and edit the properties of configuration objects stored in wiki documents.

Lookups go through the same cached configuration sources the server uses, with
values under "defaults" in the configuration file served beneath stored ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "configuration file (default ./wikiconf.yaml)")
	flags.String("driver", "", "database driver: sqlite3 or postgres")
	flags.String("dsn", "", "database connection string")
	flags.String("wiki", "", "wiki to operate on")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.StringVar(&a.document, "document", defaultDocument, "document holding the configuration object")
	flags.StringVar(&a.class, "class", "", "class of the configuration object (defaults to the document)")

	_ = a.v.BindPFlag("db.driver", flags.Lookup("driver"))
	_ = a.v.BindPFlag("db.dsn", flags.Lookup("dsn"))
	_ = a.v.BindPFlag("wiki", flags.Lookup("wiki"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	cmd.AddCommand(
		a.getCmd(),
		a.keysCmd(),
		a.setCmd(),
		a.unsetCmd(),
		a.deleteObjectCmd(),
		a.deleteWikiCmd(),
		a.objectsCmd(),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// target resolves the object the command works on. Documents without a wiki
// part live in the configured wiki.
func (a *app) target() (reference.Document, reference.Class, error) {
	doc, err := reference.ParseDocument(a.document, a.cfg.Wiki)
	if err != nil {
		return reference.Document{}, reference.Class{}, err
	}
	if a.class == "" {
		return doc, doc.Local(), nil
	}
	class, err := reference.ParseClass(a.class)
	if err != nil {
		return reference.Document{}, reference.Class{}, err
	}
	return doc, class, nil
}

type session struct {
	container *di.Container
	store     *sqlstore.Store
}

func (s *session) Close() {
	s.container.Close()
	_ = s.store.Close()
}

func (a *app) open(ctx context.Context) (*session, error) {
	var store *sqlstore.Store
	container, err := di.NewContainer(a.cfg.CacheSettings(),
		di.WithLogger(a.logger),
		di.WithStore(func(pub event.Publisher) (document.ReadWriter, error) {
			s, err := sqlstore.Open(a.cfg.DB.Driver, a.cfg.DB.DSN,
				sqlstore.WithPublisher(pub),
				sqlstore.WithLogger(a.logger),
			)
			if err != nil {
				return nil, err
			}
			if err := s.CreateSchema(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
			store = s
			return s, nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return &session{container: container, store: store}, nil
}

// source layers the stored object over the configured defaults. The returned
// func releases the document source.
func (a *app) source(ctx context.Context, sess *session, doc reference.Document, class reference.Class, withDefaults bool) (configsource.ConfigurationSource, func(), error) {
	domain := configsource.StaticDomain{
		Document: doc,
		Class:    class,
		ID:       "wikiconf." + doc.String(),
	}
	src, err := sess.container.NewSource(ctx, domain,
		configsource.WithExecutionProvider(execution.Fixed(a.cfg.Wiki)),
	)
	if err != nil {
		return nil, nil, err
	}

	composite := configsource.NewComposite(src)
	if withDefaults {
		composite.Append(configsource.NewViperSource(a.v, DefaultsPrefix,
			configsource.WithMapConverter(sess.container.Converter()),
			configsource.WithMapLogger(a.logger),
		))
	}

	release := func() {
		if err := src.Close(ctx); err != nil {
			a.logger.WarnContext(ctx, "failed to close configuration source", slog.Any("error", err))
		}
	}
	return composite, release, nil
}
