package zset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ValentinKolb/zKV/cmd/util"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/spf13/cobra"
)

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

var (
	addCmd = &cobra.Command{
		Use:   "add [key] [score] [member] [[score] [member]...]",
		Short: "Adds members with scores, updates the score of existing members",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := addFlagsOf(cmd)
			if err != nil {
				return err
			}
			members, err := parseMemberScores(args[1:])
			if err != nil {
				return err
			}
			result, err := zStore.Add(args[0], flags, members)
			if err != nil {
				return err
			}
			switch {
			case !flags.Has(store.AddINCR):
				fmt.Println(result.Count)
			case result.Skipped:
				fmt.Println("(nil)")
			default:
				fmt.Println(formatScore(result.Score))
			}
			return nil
		},
	}
	incrByCmd = &cobra.Command{
		Use:   "incrby [key] [increment] [member]",
		Short: "Increments the score of a member, a missing member starts at 0",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseScore(args[1])
			if err != nil {
				return err
			}
			score, err := zStore.IncrBy(args[0], args[2], delta)
			if err != nil {
				return err
			}
			fmt.Println(formatScore(score))
			return nil
		},
	}
	remCmd = &cobra.Command{
		Use:   "rem [key] [member...]",
		Short: "Removes members and prints how many existed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := zStore.Remove(args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Println(removed)
			return nil
		},
	}
	popCmd = &cobra.Command{
		Use:   "pop [key] [count]",
		Short: "Removes and prints the members with the lowest (or highest with --max) scores",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 2 {
				var err error
				if count, err = parseInt(args[1], "count"); err != nil {
					return err
				}
			}
			popMax, _ := cmd.Flags().GetBool("max")
			entries, err := zStore.Pop(args[0], count, !popMax)
			if err != nil {
				return err
			}
			printEntries(entries, true)
			return nil
		},
	}
	remRangeByScoreCmd = &cobra.Command{
		Use:   "remrangebyscore [key] [min] [max]",
		Short: "Removes all members within the score range, e.g. '(1.5' '+inf'",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseScoreRange(args[1], args[2])
			if err != nil {
				return err
			}
			removed, err := zStore.RemoveRangeByScore(args[0], spec)
			if err != nil {
				return err
			}
			fmt.Println(removed)
			return nil
		},
	}
	remRangeByRankCmd = &cobra.Command{
		Use:   "remrangebyrank [key] [start] [stop]",
		Short: "Removes all members within the rank range, negative ranks count from the end",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, stop, err := parseRanks(args[1], args[2])
			if err != nil {
				return err
			}
			removed, err := zStore.RemoveRangeByRank(args[0], start, stop)
			if err != nil {
				return err
			}
			fmt.Println(removed)
			return nil
		},
	}
	remRangeByLexCmd = &cobra.Command{
		Use:   "remrangebylex [key] [min] [max]",
		Short: "Removes all members within the lexicographic range, e.g. '[a' '(c' or '-' '+'",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseLexSpec(args[1], args[2])
			if err != nil {
				return err
			}
			removed, err := zStore.RemoveRangeByLex(args[0], spec)
			if err != nil {
				return err
			}
			fmt.Println(removed)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes sorted sets and prints how many existed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted := 0
			for _, key := range args {
				existed, err := zStore.Delete(key)
				if err != nil {
					return err
				}
				if existed {
					deleted++
				}
			}
			fmt.Println(deleted)
			return nil
		},
	}
	expireCmd = &cobra.Command{
		Use:   "expire [key] [seconds]",
		Short: "Lets a sorted set expire after the given number of seconds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseInt(args[1], "seconds")
			if err != nil {
				return err
			}
			ok, err := zStore.Expire(args[0], time.Now().Add(time.Duration(seconds)*time.Second))
			if err != nil {
				return err
			}
			fmt.Println(boolToInt(ok))
			return nil
		},
	}
	persistCmd = &cobra.Command{
		Use:   "persist [key]",
		Short: "Removes the expiration of a sorted set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := zStore.Persist(args[0])
			if err != nil {
				return err
			}
			fmt.Println(boolToInt(ok))
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

var (
	scoreCmd = &cobra.Command{
		Use:   "score [key] [member]",
		Short: "Prints the score of a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := zStore.Score(args[0], args[1])
			if store.IsNotFound(err) {
				fmt.Println("(nil)")
				return nil
			} else if err != nil {
				return err
			}
			fmt.Println(formatScore(score))
			return nil
		},
	}
	mScoreCmd = &cobra.Command{
		Use:   "mscore [key] [member...]",
		Short: "Prints the scores of the members",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scores, err := zStore.MScore(args[0], args[1:])
			if err != nil {
				return err
			}
			for i, score := range scores {
				if score == nil {
					fmt.Printf("%d) (nil)\n", i+1)
				} else {
					fmt.Printf("%d) %s\n", i+1, formatScore(*score))
				}
			}
			return nil
		},
	}
	rankCmd = &cobra.Command{
		Use:   "rank [key] [member]",
		Short: "Prints the zero-based rank of a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reverse, _ := cmd.Flags().GetBool("reverse")
			rank, err := zStore.Rank(args[0], args[1], reverse)
			if err != nil {
				return err
			}
			if rank < 0 {
				fmt.Println("(nil)")
			} else {
				fmt.Println(rank)
			}
			return nil
		},
	}
	rangeCmd = &cobra.Command{
		Use:   "range [key] [start] [stop]",
		Short: "Prints the members within the rank range, negative ranks count from the end",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, stop, err := parseRanks(args[1], args[2])
			if err != nil {
				return err
			}
			reverse, _ := cmd.Flags().GetBool("reverse")
			entries, err := zStore.Range(args[0], start, stop, reverse)
			if err != nil {
				return err
			}
			withScores, _ := cmd.Flags().GetBool("withscores")
			printEntries(entries, withScores)
			return nil
		},
	}
	rangeByScoreCmd = &cobra.Command{
		Use:   "rangebyscore [key] [min] [max]",
		Short: "Prints the members within the score range, e.g. '(1.5' '+inf'",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseScoreRange(args[1], args[2])
			if err != nil {
				return err
			}
			spec.Reversed, _ = cmd.Flags().GetBool("reverse")
			spec.Offset, _ = cmd.Flags().GetInt("offset")
			spec.Count, _ = cmd.Flags().GetInt("count")
			entries, err := zStore.RangeByScore(args[0], spec)
			if err != nil {
				return err
			}
			withScores, _ := cmd.Flags().GetBool("withscores")
			printEntries(entries, withScores)
			return nil
		},
	}
	rangeByLexCmd = &cobra.Command{
		Use:   "rangebylex [key] [min] [max]",
		Short: "Prints the members within the lexicographic range, e.g. '[a' '(c' or '-' '+'",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseLexSpec(args[1], args[2])
			if err != nil {
				return err
			}
			spec.Reversed, _ = cmd.Flags().GetBool("reverse")
			spec.Offset, _ = cmd.Flags().GetInt("offset")
			spec.Count, _ = cmd.Flags().GetInt("count")
			members, err := zStore.RangeByLex(args[0], spec)
			if err != nil {
				return err
			}
			for i, member := range members {
				fmt.Printf("%d) %s\n", i+1, member)
			}
			return nil
		},
	}
	cardCmd = &cobra.Command{
		Use:   "card [key]",
		Short: "Prints the number of members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := zStore.Card(args[0])
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [key] [min] [max]",
		Short: "Prints the number of members within the score range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseScoreRange(args[1], args[2])
			if err != nil {
				return err
			}
			count, err := zStore.Count(args[0], spec)
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
	lexCountCmd = &cobra.Command{
		Use:   "lexcount [key] [min] [max]",
		Short: "Prints the number of members within the lexicographic range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := store.ParseLexSpec(args[1], args[2])
			if err != nil {
				return err
			}
			count, err := zStore.LexCount(args[0], spec)
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining time to live in seconds (-1 without expiration, -2 for a missing key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := zStore.TTL(args[0])
			switch {
			case store.IsNotFound(err):
				fmt.Println(-2)
			case err != nil:
				return err
			case ttl == store.NoExpiration:
				fmt.Println(-1)
			default:
				fmt.Println(int64((ttl + time.Second - 1) / time.Second))
			}
			return nil
		},
	}
)

func init() {
	addCmd.Flags().Bool("nx", false, util.WrapString("Only add new members, never update existing ones"))
	addCmd.Flags().Bool("xx", false, util.WrapString("Only update existing members, never add new ones"))
	addCmd.Flags().Bool("gt", false, util.WrapString("Only update if the new score is greater than the current one"))
	addCmd.Flags().Bool("lt", false, util.WrapString("Only update if the new score is less than the current one"))
	addCmd.Flags().Bool("ch", false, util.WrapString("Count changed members in addition to added ones"))
	addCmd.Flags().Bool("incr", false, util.WrapString("Increment the score instead of setting it (exactly one member)"))

	popCmd.Flags().Bool("max", false, util.WrapString("Pop the members with the highest scores"))
	rankCmd.Flags().Bool("reverse", false, util.WrapString("Rank in descending order"))

	for _, cmd := range []*cobra.Command{rangeCmd, rangeByScoreCmd, rangeByLexCmd} {
		cmd.Flags().Bool("reverse", false, util.WrapString("Iterate in descending order"))
	}
	for _, cmd := range []*cobra.Command{rangeCmd, rangeByScoreCmd} {
		cmd.Flags().Bool("withscores", false, util.WrapString("Print the scores next to the members"))
	}
	for _, cmd := range []*cobra.Command{rangeByScoreCmd, rangeByLexCmd} {
		cmd.Flags().Int("offset", 0, util.WrapString("Number of matches to skip"))
		cmd.Flags().Int("count", 0, util.WrapString("Maximum number of results (0 = unlimited)"))
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// addFlagsOf reads the add flags of the command
func addFlagsOf(cmd *cobra.Command) (store.AddFlags, error) {
	var flags store.AddFlags
	for _, f := range []struct {
		name string
		flag store.AddFlags
	}{
		{"nx", store.AddNX}, {"xx", store.AddXX}, {"gt", store.AddGT},
		{"lt", store.AddLT}, {"ch", store.AddCH}, {"incr", store.AddINCR},
	} {
		set, err := cmd.Flags().GetBool(f.name)
		if err != nil {
			return 0, err
		}
		if set {
			flags |= f.flag
		}
	}
	return flags, nil
}

// parseMemberScores parses "score member" pairs
func parseMemberScores(args []string) ([]store.MemberScore, error) {
	if len(args)%2 != 0 {
		return nil, store.NewError(store.RetCInvalidArgument, "scores and members must come in pairs")
	}
	members := make([]store.MemberScore, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		score, err := parseScore(args[i])
		if err != nil {
			return nil, err
		}
		members = append(members, store.MemberScore{Member: args[i+1], Score: score})
	}
	return members, nil
}

// parseScore parses a score, "inf", "+inf" and "-inf" included
func parseScore(s string) (float64, error) {
	score, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(score) {
		return 0, store.Errorf(store.RetCInvalidArgument, "value is not a valid float: %q", s)
	}
	return score, nil
}

func parseInt(s, name string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return v, nil
}

func parseRanks(start, stop string) (int, int, error) {
	first, err := parseInt(start, "start")
	if err != nil {
		return 0, 0, err
	}
	last, err := parseInt(stop, "stop")
	if err != nil {
		return 0, 0, err
	}
	return first, last, nil
}

// formatScore prints scores the shortest way that parses back to the same value
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

func printEntries(entries []store.MemberScore, withScores bool) {
	if len(entries) == 0 {
		fmt.Println("(empty)")
		return
	}
	for i, e := range entries {
		if withScores {
			fmt.Printf("%d) %s %s\n", i+1, e.Member, formatScore(e.Score))
		} else {
			fmt.Printf("%d) %s\n", i+1, e.Member)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
