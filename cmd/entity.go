package cmd

import (
	"io"
	"strings"

	"github.com/agubarev/chapi/pkg/engine"
	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/util"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// kind describes how the command line addresses one entity kind
type kind[T entity.Entity[T]] struct {
	use       string
	singular  string
	partition string
	service   func(e *engine.Engine) *engine.Service[T]
	new       func() T

	// identify builds an item carrying nothing but its identity
	identify func(id, partition string) (T, error)
}

func usersCommand(s *session) *cobra.Command {
	return kindCommand(s, kind[*entity.User]{
		use:       "users",
		singular:  "user",
		partition: "organization",
		service:   func(e *engine.Engine) *engine.Service[*entity.User] { return e.Users },
		new:       func() *entity.User { return new(entity.User) },
		identify: func(id, partition string) (*entity.User, error) {
			return &entity.User{Email: id, Organization: partition}, nil
		},
	})
}

func groupsCommand(s *session) *cobra.Command {
	return kindCommand(s, kind[*entity.Group]{
		use:       "groups",
		singular:  "group",
		partition: "organization",
		service:   func(e *engine.Engine) *engine.Service[*entity.Group] { return e.Groups },
		new:       func() *entity.Group { return new(entity.Group) },
		identify: func(id, partition string) (*entity.Group, error) {
			// a bare name is resolved within the given organization
			if !strings.Contains(id, entity.IDSeparator) && partition != "" {
				id = entity.GroupID(partition, id)
			}

			org, name, err := entity.SplitGroupID(id)
			if err != nil {
				return nil, err
			}

			return &entity.Group{Organization: org, Name: name}, nil
		},
	})
}

func applicationsCommand(s *session) *cobra.Command {
	return kindCommand(s, kind[*entity.Application]{
		use:       "applications",
		singular:  "application",
		partition: "platform",
		service:   func(e *engine.Engine) *engine.Service[*entity.Application] { return e.Applications },
		new:       func() *entity.Application { return new(entity.Application) },
		identify: func(id, partition string) (*entity.Application, error) {
			return &entity.Application{Name: id, Platform: partition}, nil
		},
	})
}

func kindCommand[T entity.Entity[T]](s *session, k kind[T]) *cobra.Command {
	var partition, data string

	service := func() *engine.Service[T] {
		return k.service(s.core.Engine())
	}

	// payload decodes --data, or stdin if it is not given
	payload := func(cmd *cobra.Command) (T, error) {
		item := k.new()

		var body []byte
		var err error

		if data != "" {
			body = []byte(data)
		} else if body, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return item, errors.Wrap(err, "failed to read payload")
		}

		if len(strings.TrimSpace(string(body))) == 0 {
			return item, errors.Errorf("%s payload is empty", k.singular)
		}

		if err = json.Unmarshal(body, item); err != nil {
			return item, errors.Wrapf(err, "invalid %s payload", k.singular)
		}

		return item, nil
	}

	write := func(name, short string, fn func(cmd *cobra.Command, item T) (T, error)) *cobra.Command {
		c := &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: s.run(func(cmd *cobra.Command, _ []string) error {
				item, err := payload(cmd)
				if err != nil {
					return err
				}

				if item, err = fn(cmd, item); err != nil {
					return err
				}

				return util.PrettyPrint(cmd.OutOrStdout(), item)
			}),
		}

		c.Flags().StringVarP(&data, "data", "d", "", "JSON payload, read from stdin when omitted")

		return c
	}

	root := &cobra.Command{
		Use:   k.use,
		Short: "Manage " + k.use,
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a " + k.singular,
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			item, err := service().Get(contextOf(cmd), args[0], partition)
			if err != nil {
				return err
			}

			return util.PrettyPrint(cmd.OutOrStdout(), item)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every " + k.singular + ", or those of a single " + k.partition,
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, _ []string) error {
			var items []T
			var err error

			if partition != "" {
				items, err = service().GetByPartition(contextOf(cmd), partition)
			} else {
				items, err = service().GetAll(contextOf(cmd))
			}

			if err != nil {
				return err
			}

			if items == nil {
				items = make([]T, 0)
			}

			return util.PrettyPrint(cmd.OutOrStdout(), items)
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + k.singular + " and every reference to it",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			item, err := k.identify(args[0], partition)
			if err != nil {
				return err
			}

			return service().Delete(contextOf(cmd), item)
		}),
	}

	migrate := &cobra.Command{
		Use:   "migrate <id> <" + k.partition + ">",
		Short: "Move a " + k.singular + " into another " + k.partition,
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			item, err := k.identify(args[0], partition)
			if err != nil {
				return err
			}

			moved, err := service().Migrate(contextOf(cmd), item, args[1])
			if err != nil {
				return err
			}

			return util.PrettyPrint(cmd.OutOrStdout(), moved)
		}),
	}

	for _, c := range []*cobra.Command{get, list, del, migrate} {
		c.Flags().StringVarP(&partition, k.partition, "p", "", "restrict to a single "+k.partition)
	}

	root.AddCommand(
		get,
		list,
		write("create", "Create a "+k.singular+" from a JSON payload", func(cmd *cobra.Command, item T) (T, error) { return service().Create(contextOf(cmd), item) }),
		write("patch", "Merge the non-empty fields of the payload into a stored "+k.singular, func(cmd *cobra.Command, item T) (T, error) { return service().Patch(contextOf(cmd), item) }),
		write("put", "Replace a stored "+k.singular+" with the payload", func(cmd *cobra.Command, item T) (T, error) { return service().Put(contextOf(cmd), item) }),
		del,
		migrate,
	)

	return root
}
