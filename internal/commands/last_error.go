package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/keyward/internal/crash"
	"github.com/dotcommander/keyward/internal/output"
	"github.com/dotcommander/keyward/internal/store"
)

// NewLastErrorCmd creates the command that reads back the most recent crash
// report from the diagnostic registry.
func NewLastErrorCmd() *cobra.Command {
	var clearEntry bool

	cmd := &cobra.Command{
		Use:   "last-error",
		Short: "Show the last crash report recorded in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(reg *store.Registry) error {
				ctx := cmd.Context()

				type resp struct {
					Namespace string     `json:"namespace"`
					Key       string     `json:"key"`
					Found     bool       `json:"found"`
					Report    string     `json:"report,omitempty"`
					UpdatedAt *time.Time `json:"updated_at,omitempty"`
					Cleared   bool       `json:"cleared,omitempty"`
				}
				r := resp{Namespace: crash.RegistryNamespace, Key: crash.LastErrorKey}

				e, err := reg.Get(ctx, crash.RegistryNamespace, crash.LastErrorKey)
				switch {
				case errors.Is(err, store.ErrNotFound):
				case err != nil:
					return err
				default:
					r.Found = true
					r.Report = e.Value
					r.UpdatedAt = &e.UpdatedAt
				}

				if clearEntry && r.Found {
					if err := reg.Delete(ctx, crash.RegistryNamespace, crash.LastErrorKey); err != nil {
						return err
					}
					r.Cleared = true
				}
				return output.PrintSuccess(r)
			})
		},
	}

	cmd.Flags().BoolVar(&clearEntry, "clear", false, "Delete the entry after printing it")

	return cmd
}
