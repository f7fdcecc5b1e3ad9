/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// ctlq is a small ntpq-alike: it speaks the mode 6 control protocol
// to a responder and pretty-prints the results.
package main

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timekeep/timekeep/ntp/control"
)

var (
	target  string
	assocID uint16
	timeout time.Duration
)

func dial() (*control.Client, func(), error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return &control.Client{Connection: conn}, func() { conn.Close() }, nil
}

func printKV(data []byte) {
	kv, err := control.NormalizeData(data)
	if err != nil {
		log.Fatal(err)
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bold := color.New(color.Bold)
	for _, k := range keys {
		bold.Print(k)
		fmt.Printf("=%s\n", kv[k])
	}
}

var rootCmd = &cobra.Command{
	Use:   "ctlq",
	Short: "query a mode 6 control responder",
}

var readVarCmd = &cobra.Command{
	Use:   "readvar [name ...]",
	Short: "read system or peer variables",
	Run: func(_ *cobra.Command, args []string) {
		c, closer, err := dial()
		if err != nil {
			log.Fatal(err)
		}
		defer closer()
		m, err := c.Query(control.OpReadVar, assocID, []byte(strings.Join(args, ",")))
		if err != nil {
			log.Fatal(err)
		}
		printKV(m.Data)
	},
}

var readStatCmd = &cobra.Command{
	Use:   "readstat",
	Short: "list associations with their status words",
	Run: func(_ *cobra.Command, _ []string) {
		c, closer, err := dial()
		if err != nil {
			log.Fatal(err)
		}
		defer closer()
		m, err := c.Query(control.OpReadStat, 0, nil)
		if err != nil {
			log.Fatal(err)
		}
		assocs, err := m.GetAssociations()
		if err != nil {
			log.Fatal(err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"assoc", "selection", "reach", "auth", "events"})
		for id, st := range assocs {
			table.Append([]string{
				fmt.Sprintf("%d", id),
				control.PeerSelect[st.PeerSelection],
				fmt.Sprintf("%v", st.PeerStatus.Reachable),
				fmt.Sprintf("%v", st.PeerStatus.AuthOK),
				fmt.Sprintf("%d", st.PeerEventCounter),
			})
		}
		table.Render()
	},
}

var mruListCmd = &cobra.Command{
	Use:   "mrulist",
	Short: "dump the responder's MRU client table",
	Run: func(_ *cobra.Command, _ []string) {
		c, closer, err := dial()
		if err != nil {
			log.Fatal(err)
		}
		defer closer()

		m, err := c.Query(control.OpReqNonce, 0, nil)
		if err != nil {
			log.Fatal(err)
		}
		kv, err := control.NormalizeData(m.Data)
		if err != nil {
			log.Fatal(err)
		}
		nonce := kv["nonce"]

		rows := map[string]map[string]string{}
		req := fmt.Sprintf("nonce=%s, frags=32", nonce)
		m, err = c.Query(control.OpReadMRU, 0, []byte(req))
		if err != nil {
			log.Fatal(err)
		}
		page, err := control.NormalizeData(m.Data)
		if err != nil {
			log.Fatal(err)
		}
		for k, v := range page {
			dot := strings.LastIndex(k, ".")
			if dot < 0 {
				continue
			}
			idx := k[dot+1:]
			if _, ok := rows[idx]; !ok {
				rows[idx] = map[string]string{}
			}
			rows[idx][k[:dot]] = v
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"address", "last", "first", "count", "mv", "rs"})
		for _, row := range rows {
			if row["addr"] == "" {
				continue
			}
			table.Append([]string{
				row["addr"], row["last"], row["first"], row["ct"], row["mv"], row["rs"],
			})
		}
		table.Render()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&target, "server", "s", "127.0.0.1:123", "responder address")
	rootCmd.PersistentFlags().Uint16Var(&assocID, "assoc", 0, "association id, 0 for system")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "query timeout")
	rootCmd.AddCommand(readVarCmd, readStatCmd, mruListCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
