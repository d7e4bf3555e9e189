package kv

import (
	"fmt"
	"github.com/spf13/cobra"
	"strconv"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setExCmd = &cobra.Command{
		Use:   "setex [key] [value] [seconds]",
		Short: "Sets the value for a key that expires after the given number of seconds",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("seconds must be a number: %w", err)
			}
			if err := kvClient.SetEx(args[0], []byte(args[1]), seconds); err != nil {
				return err
			}
			fmt.Println("setex successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, ok, err := kvClient.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, ok, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			deleted, err := kvClient.Del(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, deleted=%t\n", key, deleted)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := kvClient.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increments the integer value of a key (by 1 or delta)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := int64(1)
			if len(args) == 2 {
				var err error
				if delta, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("delta must be a number: %w", err)
				}
			}
			n, err := kvClient.IncrBy(args[0], delta)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d\n", args[0], n)
			return nil
		},
	}
	expireCmd = &cobra.Command{
		Use:   "expire [key] [seconds]",
		Short: "Sets the time to live of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("seconds must be a number: %w", err)
			}
			ok, err := kvClient.Expire(args[0], seconds)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], ok)
			return nil
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining time to live of a key (-1 = no expiry, -2 = missing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := kvClient.TTL(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, ttl=%d\n", args[0], ttl)
			return nil
		},
	}
	saddCmd = &cobra.Command{
		Use:   "sadd [key] [member...]",
		Short: "Adds members to a set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := kvClient.SAdd(args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, added=%d\n", args[0], added)
			return nil
		},
	}
	smembersCmd = &cobra.Command{
		Use:   "smembers [key]",
		Short: "Lists the members of a set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := kvClient.SMembers(args[0])
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Println(m)
			}
			return nil
		},
	}
)
