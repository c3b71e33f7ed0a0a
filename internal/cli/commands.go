package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	errors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-document-config/convert"
)

func (a *app) getCmd() *cobra.Command {
	var (
		typeName   string
		noDefaults bool
	)

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a configuration property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := convert.ParseType(typeName)
			if err != nil {
				return err
			}
			doc, class, err := a.target()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			src, release, err := a.source(ctx, sess, doc, class, !noDefaults)
			if err != nil {
				return err
			}
			defer release()

			key := args[0]
			if src.Get(ctx, key) == nil {
				return errors.New(fmt.Sprintf("property %q not found in %s", key, doc), errors.CategoryNotFound)
			}
			value := src.GetAs(ctx, key, typ)
			if value == nil {
				return errors.New(fmt.Sprintf("property %q cannot be read as %s", key, typ), errors.CategoryBadInput)
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatValue(value))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "any", "convert the value before printing (int, bool, duration, list, map...)")
	cmd.Flags().BoolVar(&noDefaults, "no-defaults", false, "ignore values from the defaults section")
	return cmd
}

func (a *app) keysCmd() *cobra.Command {
	var noDefaults bool

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List configuration property names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, class, err := a.target()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			src, release, err := a.source(ctx, sess, doc, class, !noDefaults)
			if err != nil {
				return err
			}
			defer release()

			for _, key := range src.Keys(ctx) {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noDefaults, "no-defaults", false, "ignore values from the defaults section")
	return cmd
}

func (a *app) setCmd() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a configuration property, creating the object if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := convert.ParseType(typeName)
			if err != nil {
				return err
			}
			doc, class, err := a.target()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			value, err := sess.container.Converter().Convert(typ, args[1])
			if err != nil {
				return err
			}
			if err := sess.store.SetField(ctx, doc, class, args[0], value); err != nil {
				return err
			}

			a.logger.InfoContext(ctx, "property stored",
				slog.String("document", doc.String()),
				slog.String("key", args[0]),
				slog.String("type", typ.String()),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "string", "store the value as this type (string, int, bool, duration, list...)")
	return cmd
}

func (a *app) unsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, class, err := a.target()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			return sess.store.RemoveField(ctx, doc, class, args[0])
		},
	}
}

func (a *app) deleteObjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-object",
		Short: "Remove the configuration object and all its properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, class, err := a.target()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			return sess.store.DeleteObject(ctx, doc, class)
		},
	}
}

func (a *app) deleteWikiCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete-wiki WIKI",
		Short: "Remove every configuration object of a wiki",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New(fmt.Sprintf("refusing to delete wiki %q without --force", args[0]), errors.CategoryBadInput)
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.store.DeleteWiki(ctx, args[0]); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "wiki deleted", slog.String("wiki", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm the deletion")
	return cmd
}

func (a *app) objectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects",
		Short: "List the configuration objects stored in the wiki",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			refs, err := sess.store.Objects(ctx, a.cfg.Wiki)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case map[string]string:
		pairs := make([]string, 0, len(val))
		for k, item := range val {
			pairs = append(pairs, k+"="+item)
		}
		sort.Strings(pairs)
		return strings.Join(pairs, ",")
	default:
		return fmt.Sprint(v)
	}
}
