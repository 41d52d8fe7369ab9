package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bft-labs/zkwire"
	"github.com/bft-labs/zkwire/internal/cliconfig"
)

var (
	pathColor  = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen)
	eventColor = color.New(color.FgYellow)
	faint      = color.New(color.Faint)
)

func printStat(stat *zkwire.Stat) {
	faint.Printf("  czxid=%d mzxid=%d pzxid=%d\n", stat.Czxid, stat.Mzxid, stat.Pzxid)
	faint.Printf("  version=%d cversion=%d aversion=%d\n", stat.Version, stat.Cversion, stat.Aversion)
	faint.Printf("  dataLength=%d numChildren=%d ephemeralOwner=%#x\n", stat.DataLength, stat.NumChildren, stat.EphemeralOwner)
}

func printEvent(ev zkwire.Event) {
	eventColor.Printf("%s", ev.Type)
	if ev.Path != "" {
		fmt.Printf(" %s", pathColor.Sprint(ev.Path))
	}
	if ev.Type == zkwire.EventSession {
		fmt.Printf(" state=%s", ev.State)
	}
	fmt.Println()
}

func newGetCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read the data of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if watch {
				data, stat, ch, err := conn.GetW(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				os.Stdout.Write(data)
				fmt.Println()
				printStat(stat)
				select {
				case ev := <-ch:
					printEvent(ev)
				case <-cmd.Context().Done():
				}
				return nil
			}

			data, stat, err := conn.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			fmt.Println()
			printStat(stat)
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "wait for the next change to the node")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var version int32
	cmd := &cobra.Command{
		Use:   "set <path> <data>",
		Short: "Write the data of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			stat, err := conn.Set(cmd.Context(), args[0], []byte(args[1]), version)
			if err != nil {
				return err
			}
			okColor.Printf("set %s\n", args[0])
			printStat(stat)
			return nil
		},
	}
	cmd.Flags().Int32Var(&version, "version", -1, "expected node version (-1 to skip the check)")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var ephemeral, sequence bool
	cmd := &cobra.Command{
		Use:   "create <path> [data]",
		Short: "Create a node",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			var data []byte
			if len(args) == 2 {
				data = []byte(args[1])
			}
			var flags int32
			if ephemeral {
				flags |= zkwire.FlagEphemeral
			}
			if sequence {
				flags |= zkwire.FlagSequence
			}

			created, err := conn.Create(cmd.Context(), args[0], data, flags, zkwire.WorldACL(zkwire.PermAll))
			if err != nil {
				return err
			}
			okColor.Print("created ")
			pathColor.Println(created)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "delete the node when the session ends")
	cmd.Flags().BoolVar(&sequence, "sequence", false, "append a server-assigned sequence number")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var version int32
	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.Delete(cmd.Context(), args[0], version); err != nil {
				return err
			}
			okColor.Printf("deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Int32Var(&version, "version", -1, "expected node version (-1 to skip the check)")
	return cmd
}

func newLsCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "ls <path>",
		Short: "List the children of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if watch {
				children, _, ch, err := conn.ChildrenW(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, child := range children {
					pathColor.Println(child)
				}
				select {
				case ev := <-ch:
					printEvent(ev)
				case <-cmd.Context().Done():
				}
				return nil
			}

			children, _, err := conn.Children(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, child := range children {
				pathColor.Println(child)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "wait for the next change to the child set")
	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the metadata of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			stat, err := conn.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if stat == nil {
				return fmt.Errorf("node %s does not exist", args[0])
			}
			pathColor.Println(args[0])
			printStat(stat)
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <path>",
		Short: "Flush the leader channel so reads observe prior writes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			synced, err := conn.Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			okColor.Printf("synced %s\n", synced)
			return nil
		},
	}
}

func newMvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move a node atomically using a multi batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			data, stat, err := conn.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			// The version check aborts the batch if the source changed
			// between the read and the move.
			ops := new(zkwire.MultiOps).
				Check(args[0], stat.Version).
				Create(args[1], data, zkwire.WorldACL(zkwire.PermAll), 0).
				Delete(args[0], stat.Version)
			if _, err := conn.Multi(cmd.Context(), ops); err != nil {
				return err
			}
			okColor.Printf("moved %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Stream change notifications for a node until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.cfg.NoColor
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			ch, err := conn.AddWatch(cmd.Context(), args[0], recursive)
			if err != nil {
				return err
			}

			// Follow ensemble changes in the config file while streaming:
			// new members become failover candidates without a restart.
			if a.cfgPath != "" && cliconfig.FileExists(a.cfgPath) {
				ew := cliconfig.NewEnsembleWatcher(a.cfgPath, a.cfg.Servers, func(servers []string) {
					if err := conn.UpdateServers(servers); err != nil {
						a.log.Warn().Err(err).Strs("servers", servers).Msg("rejected ensemble update")
						return
					}
					a.log.Info().Strs("servers", servers).Msg("ensemble updated from config file")
				}, a.log)
				go ew.Run(cmd.Context())
			}

			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return nil
					}
					printEvent(ev)
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&recursive, "recursive", false, "also watch descendants of the node")
	return cmd
}
