// Package cli provides a CLI channel that generates commands from a frozen
// registry. Every resource gets list, get, create, update and delete
// subcommands plus one subcommand per custom action.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/formatter"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/artpar/adminkit/core/validation"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ErrRegistryNotFrozen is returned when commands are generated before
// orchestration finished.
var ErrRegistryNotFrozen = errors.New("registry must be frozen before generating commands")

// PasswordHasher hashes password fields before they are stored.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithHasher hashes password fields on create and update.
func WithHasher(h PasswordHasher) Option {
	return func(c *Channel) { c.hasher = h }
}

// WithLogger sets the logger used for event failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// Channel implements the CLI channel for resources.
type Channel struct {
	registry *registry.Registry
	store    storage.Store
	bus      *events.Bus
	hasher   PasswordHasher
	logger   zerolog.Logger
}

// New creates a new CLI channel.
func New(reg *registry.Registry, store storage.Store, bus *events.Bus, opts ...Option) *Channel {
	c := &Channel{
		registry: reg,
		store:    store,
		bus:      bus,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "cli"
}

// Commands returns one command per resource, named by its slug.
func (c *Channel) Commands() ([]*cobra.Command, error) {
	if !c.registry.Frozen() {
		return nil, ErrRegistryNotFrozen
	}

	resources := c.registry.Resources()
	cmds := make([]*cobra.Command, 0, len(resources))
	for _, res := range resources {
		cmd := &cobra.Command{
			Use:   res.Slug,
			Short: fmt.Sprintf("Manage %s", res.PluralLabel),
		}
		cmd.AddCommand(
			c.buildListCommand(res),
			c.buildGetCommand(res),
			c.buildCreateCommand(res),
			c.buildUpdateCommand(res),
			c.buildDeleteCommand(res),
		)
		for _, action := range res.Actions {
			cmd.AddCommand(c.buildActionCommand(res, action))
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (c *Channel) buildListCommand(res schema.ResourceData) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         fmt.Sprintf("List %s", res.PluralLabel),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			search, _ := cmd.Flags().GetString("search")
			sort, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")

			where, err := c.filterWhere(cmd, res, schema.OperationIndex, true)
			if err != nil {
				return c.formatError(cmd, err)
			}

			records, total, err := c.store.List(cmd.Context(), res.Slug, storage.ListOptions{
				Limit:     limit,
				Offset:    offset,
				Where:     where,
				Search:    search,
				OrderBy:   sort,
				OrderDesc: desc,
			})
			if err != nil {
				return c.formatError(cmd, err)
			}

			f, opts, err := c.output(cmd)
			if err != nil {
				return err
			}
			return f.FormatList(cmd.OutOrStdout(), res, records, total, opts)
		},
	}

	perPage := 25
	if len(res.PerPageOptions) > 0 {
		perPage = res.PerPageOptions[0]
	}
	cmd.Flags().IntP("limit", "l", perPage, "Maximum number of records")
	cmd.Flags().Int("offset", 0, "Number of records to skip")
	cmd.Flags().StringP("search", "s", "", "Match a substring against searchable fields")
	cmd.Flags().String("sort", "", "Field to sort by")
	cmd.Flags().Bool("desc", false, "Sort in descending order")
	addFilterFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

func (c *Channel) buildGetCommand(res schema.ResourceData) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get <id>",
		Short:         fmt.Sprintf("Show a %s", res.Label),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := c.find(cmd, res, args[0], schema.OperationFetch)
			if err != nil {
				return c.formatError(cmd, err)
			}

			f, opts, err := c.output(cmd)
			if err != nil {
				return err
			}
			return f.FormatRecord(cmd.OutOrStdout(), res, record, opts)
		},
	}

	addFilterFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

func (c *Channel) buildCreateCommand(res schema.ResourceData) *cobra.Command {
	var fields []schema.FieldData
	cmd := &cobra.Command{
		Use:           "create",
		Short:         fmt.Sprintf("Create a %s", res.Label),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := collectInput(cmd, fields)
			if err != nil {
				return c.formatError(cmd, err)
			}

			if err := validation.ValidateCreate(res, data).Err(); err != nil {
				return c.formatError(cmd, err)
			}
			if data, err = c.prepare(res, data); err != nil {
				return c.formatError(cmd, err)
			}

			record, err := c.store.Create(cmd.Context(), res.Slug, data)
			if err != nil {
				return c.formatError(cmd, err)
			}
			c.emit(cmd.Context(), res.Slug+"::created", record)

			return c.written(cmd, res, record, "Created")
		},
	}

	addOutputFlags(cmd)
	fields = addFieldFlags(cmd, res.StoredFields())
	return cmd
}

func (c *Channel) buildUpdateCommand(res schema.ResourceData) *cobra.Command {
	var fields []schema.FieldData
	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         fmt.Sprintf("Update a %s", res.Label),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := collectInput(cmd, fields)
			if err != nil {
				return c.formatError(cmd, err)
			}
			if len(data) == 0 {
				return c.formatError(cmd, errors.New("no fields to update"))
			}

			if _, err := c.find(cmd, res, args[0], schema.OperationUpdate); err != nil {
				return c.formatError(cmd, err)
			}
			if err := validation.ValidateUpdate(res, data).Err(); err != nil {
				return c.formatError(cmd, err)
			}
			if data, err = c.prepare(res, data); err != nil {
				return c.formatError(cmd, err)
			}

			record, err := c.store.Update(cmd.Context(), res.Slug, args[0], data)
			if err != nil {
				return c.formatError(cmd, err)
			}
			c.emit(cmd.Context(), res.Slug+"::updated", record)

			return c.written(cmd, res, record, "Updated")
		},
	}

	addFilterFlags(cmd)
	addOutputFlags(cmd)
	fields = addFieldFlags(cmd, res.StoredFields())
	return cmd
}

func (c *Channel) buildDeleteCommand(res schema.ResourceData) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <id>",
		Short:         fmt.Sprintf("Delete a %s", res.Label),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Are you sure you want to delete %s %s? (use --force to confirm)\n", res.Label, args[0])
				return nil
			}

			record, err := c.find(cmd, res, args[0], schema.OperationDelete)
			if err != nil {
				return c.formatError(cmd, err)
			}
			if err := c.store.Delete(cmd.Context(), res.Slug, args[0]); err != nil {
				return c.formatError(cmd, err)
			}
			c.emit(cmd.Context(), res.Slug+"::deleted", record)

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s: %s\n", res.Label, args[0])
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Delete without confirmation")
	addFilterFlags(cmd)
	return cmd
}

func (c *Channel) buildActionCommand(res schema.ResourceData, action schema.ActionData) *cobra.Command {
	var fields []schema.FieldData
	short := action.Description
	if short == "" {
		short = fmt.Sprintf("Run %s on %s", action.Name, res.PluralLabel)
	}

	cmd := &cobra.Command{
		Use:           action.Slug + " <id>...",
		Short:         short,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if action.Destructive && !force {
				msg := action.ConfirmText
				if msg == "" {
					msg = fmt.Sprintf("Are you sure you want to run %s?", action.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (use --force to confirm)\n", msg)
				return nil
			}

			payload, err := collectInput(cmd, fields)
			if err != nil {
				return c.formatError(cmd, err)
			}

			records := make([]map[string]any, 0, len(args))
			for _, id := range args {
				record, err := c.find(cmd, res, id, schema.OperationAction)
				if err != nil {
					return c.formatError(cmd, err)
				}
				records = append(records, record)
			}

			result, err := action.Run(cmd.Context(), schema.ActionRequest{
				Resource: res.Slug,
				Records:  records,
				Payload:  payload,
			})
			if err != nil {
				return c.formatError(cmd, err)
			}

			msg := result.Message
			if msg == "" {
				msg = fmt.Sprintf("%s completed for %d %s", action.Name, len(records), res.PluralLabel)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Run without confirmation")
	addFilterFlags(cmd)
	fields = addFieldFlags(cmd, action.Fields)
	return cmd
}

// find loads a record by id, scoped by the selected filters or, when none
// are selected, the default filters.
func (c *Channel) find(cmd *cobra.Command, res schema.ResourceData, id string, op schema.Operation) (map[string]any, error) {
	where, err := c.filterWhere(cmd, res, op, true)
	if err != nil {
		return nil, err
	}
	if len(where) == 0 {
		return c.store.Get(cmd.Context(), res.Slug, id)
	}

	records, _, err := c.store.List(cmd.Context(), res.Slug, storage.ListOptions{
		Limit: 1,
		Where: schema.And(where, schema.Eq("id", id)),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %s", storage.ErrNotFound, res.Slug, id)
	}
	return records[0], nil
}

// filterWhere resolves --filter keys against the resource's filters, passing
// --arg values as filter arguments. When none are selected and defaults is
// set, the resource's default filters apply.
func (c *Channel) filterWhere(cmd *cobra.Command, res schema.ResourceData, op schema.Operation, defaults bool) (schema.Where, error) {
	keys, _ := cmd.Flags().GetStringSlice("filter")
	raw, _ := cmd.Flags().GetStringToString("arg")

	var selected []schema.FilterData
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		f, ok := res.Filter(key)
		if !ok {
			return nil, fmt.Errorf("resource %s has no filter %q", res.Slug, key)
		}
		selected = append(selected, f)
	}
	if len(selected) == 0 && defaults {
		selected = res.DefaultFilters()
	}
	if len(selected) == 0 {
		return nil, nil
	}

	args := make(schema.Args, len(raw))
	for k, v := range raw {
		args[k] = v
	}

	parts := make([]schema.Where, 0, len(selected))
	for _, f := range selected {
		if w := f.Apply(cmd.Context(), args, op); len(w) > 0 {
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return schema.And(parts...), nil
}

// prepare drops confirmation keys and hashes password fields.
func (c *Channel) prepare(res schema.ResourceData, payload map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(payload))
	for k, v := range payload {
		if !strings.HasSuffix(k, "_confirmation") {
			data[k] = v
		}
	}
	if c.hasher == nil {
		return data, nil
	}

	for _, f := range res.StoredFields() {
		if f.Type != schema.FieldTypePassword {
			continue
		}
		plain, ok := data[f.DatabaseField].(string)
		if !ok || plain == "" {
			continue
		}
		hashed, err := c.hasher.Hash(plain)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", f.DatabaseField, err)
		}
		data[f.DatabaseField] = hashed
	}
	return data, nil
}

func (c *Channel) emit(ctx context.Context, name string, record map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, name, record); err != nil {
		c.logger.Warn().Err(err).Str("event", name).Msg("event listeners failed")
	}
}

// written reports a created or updated record: the full record for json and
// yaml, a one-line summary for tables.
func (c *Channel) written(cmd *cobra.Command, res schema.ResourceData, record map[string]any, verb string) error {
	f, opts, err := c.output(cmd)
	if err != nil {
		return err
	}
	if f.Name() != "table" {
		return f.FormatRecord(cmd.OutOrStdout(), res, record, opts)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", verb, res.Label, record["id"])
	return nil
}

// addOutputFlags adds common output format flags to a command.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format: "+strings.Join(formatter.DefaultRegistry.List(), ", "))
	cmd.Flags().Bool("no-header", false, "Disable header row (table format)")
	cmd.Flags().Bool("compact", false, "Compact output (json/yaml)")
	cmd.Flags().StringSlice("columns", nil, "Fields to show")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("filter", nil, "Filters to apply, by short name, slug or name")
	cmd.Flags().StringToString("arg", nil, "Filter argument as key=value")
}

// output resolves the formatter and options from command flags.
func (c *Channel) output(cmd *cobra.Command) (formatter.Formatter, formatter.FormatOptions, error) {
	name, _ := cmd.Flags().GetString("output")
	f, err := formatter.Lookup(name)
	if err != nil {
		return nil, formatter.FormatOptions{}, err
	}

	noHeader, _ := cmd.Flags().GetBool("no-header")
	compact, _ := cmd.Flags().GetBool("compact")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	return f, formatter.FormatOptions{
		NoHeader: noHeader,
		Compact:  compact,
		MaxWidth: 40,
		Columns:  columns,
	}, nil
}

// formatError writes err in the selected format and returns it.
func (c *Channel) formatError(cmd *cobra.Command, err error) error {
	name, _ := cmd.Flags().GetString("output")
	f, lerr := formatter.Lookup(name)
	if lerr != nil {
		f = formatter.DefaultRegistry.Default()
	}
	f.FormatError(cmd.ErrOrStderr(), err)
	return err
}

// addFieldFlags adds one string flag per field, named by its database field
// in param case, plus --data for a JSON object. Fields whose flag name is
// already taken are only settable through --data. It returns the fields
// that received a flag.
func addFieldFlags(cmd *cobra.Command, fields []schema.FieldData) []schema.FieldData {
	cmd.Flags().String("data", "", "Field values as a JSON object")

	var flagged []schema.FieldData
	for _, f := range fields {
		if f.Virtual {
			continue
		}
		name := flagName(f.DatabaseField)
		if cmd.Flags().Lookup(name) != nil {
			continue
		}
		usage := f.Name
		if f.Description != "" {
			usage = f.Description
		}
		cmd.Flags().String(name, "", usage)
		flagged = append(flagged, f)

		for _, rule := range schema.ParseRules(f.CreateRules()...) {
			if rule.Kind == schema.RuleConfirmed {
				cmd.Flags().String(name+"-confirmation", "", "Confirm "+f.Name)
			}
		}
	}
	return flagged
}

// collectInput merges --data with the field flags that were set. Flags win.
func collectInput(cmd *cobra.Command, fields []schema.FieldData) (map[string]any, error) {
	data := map[string]any{}
	if raw, _ := cmd.Flags().GetString("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}

	for _, f := range fields {
		name := flagName(f.DatabaseField)
		if cmd.Flags().Changed(name) {
			raw, _ := cmd.Flags().GetString(name)
			val, err := convertInput(raw, f.Type)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", name, err)
			}
			data[f.DatabaseField] = val
		}
		if cmd.Flags().Changed(name + "-confirmation") {
			raw, _ := cmd.Flags().GetString(name + "-confirmation")
			data[f.DatabaseField+"_confirmation"] = raw
		}
	}
	return data, nil
}

func flagName(column string) string {
	return strings.ReplaceAll(column, "_", "-")
}

// convertInput converts a flag value to the field's type. "null" clears a
// field of any type.
func convertInput(val string, fieldType schema.FieldType) (any, error) {
	if val == "null" {
		return nil, nil
	}
	switch fieldType {
	case schema.FieldTypeInteger:
		return strconv.ParseInt(val, 10, 64)
	case schema.FieldTypeNumber:
		return strconv.ParseFloat(val, 64)
	case schema.FieldTypeBoolean:
		return strconv.ParseBool(val)
	case schema.FieldTypeJSON:
		var v any
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return val, nil
	}
}
