// Package cli is the command-line surface of sushistore.
package cli

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/sushistore/internal/config"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/spf13/cobra"
)

// Options carries what main wires before any command runs.
type Options struct {
	Config    *config.Config
	Telemetry observability.Observability
	Connect   ConnectFunc
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Telemetry == nil {
		o.Telemetry = observability.Nop()
	}
	if o.Connect == nil {
		o.Connect = DefaultConnect
	}
	return o
}

type root struct {
	opts     Options
	inMemory bool
}

func NewRootCommand(opts Options) *cobra.Command {
	r := &root{opts: opts.withDefaults()}

	cmd := &cobra.Command{
		Use:           "sushistore",
		Short:         "Manage sushi stock in Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&r.inMemory, "memory", false,
		"Run against an in-process store seeded from the configured catalog instead of Redis")

	cmd.AddCommand(
		r.newSeedCommand(),
		r.newBuyCommand(),
		r.newRestockCommand(),
		r.newReportCommand(),
		r.newSearchCommand(),
		r.newContendCommand(),
		newVocabCommand(),
	)
	return cmd
}

// withSession opens a session around fn and always releases it.
func (r *root) withSession(ctx context.Context, preload bool, fn func(*session) error) (err error) {
	s, err := openSession(ctx, r.opts, r.inMemory, preload)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(ctx))
	}()
	return fn(s)
}
