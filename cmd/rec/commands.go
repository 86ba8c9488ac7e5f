package rec

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/client"
	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/spf13/cobra"
)

var (
	selectCmd = &cobra.Command{
		Use:   "select [id]",
		Short: "Prints the record with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, found, err := rpcClient.Select(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("record not found")
				return nil
			}
			printRecord(rec)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [id] [title] [director] [releaseYear] [description] [genreId]",
		Short: "Replaces all fields of the record with the given id",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := record.Record{
				ID:          args[0],
				Title:       args[1],
				Director:    args[2],
				ReleaseYear: args[3],
				Description: args[4],
				GenreID:     args[5],
			}
			if err := rpcClient.Update(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println("update sent")
			return nil
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [title] [director] [releaseYear] [description] [genreId]",
		Short: "Stores a new record, the server assigns the id",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := record.Record{
				Title:       args[0],
				Director:    args[1],
				ReleaseYear: args[2],
				Description: args[3],
				GenreID:     args[4],
			}
			if err := rpcClient.Insert(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println("insert sent")
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes the record with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("delete sent")
			return nil
		},
	}
	sendCmd = &cobra.Command{
		Use:   "send [command]",
		Short: "Sends a raw command (e.g. '#select|7') and prints the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rpcClient.SendCommand(cmd.Context(), args[0])
			if errors.Is(err, client.ErrUnknownCommand) {
				fmt.Println(protocol.UnknownCommandResponse)
				return nil
			}
			if err != nil {
				return err
			}
			switch {
			case !res.Kind.HasResponse():
				fmt.Printf("%s sent\n", res.Kind)
			case res.Found:
				printRecord(res.Record)
			default:
				fmt.Println("record not found")
			}
			return nil
		},
	}
)

func printRecord(rec record.Record) {
	fmt.Printf("id:          %s\n", rec.ID)
	fmt.Printf("title:       %s\n", rec.Title)
	fmt.Printf("director:    %s\n", rec.Director)
	fmt.Printf("releaseYear: %s\n", rec.ReleaseYear)
	fmt.Printf("description: %s\n", rec.Description)
	fmt.Printf("genreId:     %s\n", rec.GenreID)
}
