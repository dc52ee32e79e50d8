// Command parcelwalkctl is the operator CLI: it talks to a running
// parcelwalkd's HTTP API to submit, list, inspect, and cancel jobs,
// plus a local dry-run of the Label Export Pipeline against files on
// disk. Grounded on the teacher's cmd/webstalk/main.go cobra
// subcommand layout.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parcelwalk/parcelwalk/internal/labelexport"
)

var apiAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "parcelwalkctl",
		Short: "parcelwalkctl — operator CLI for parcelwalkd",
	}
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:8080", "parcelwalkd API base URL")

	jobsCmd := &cobra.Command{Use: "jobs", Short: "manage scrape jobs"}
	jobsCmd.AddCommand(jobsSubmitCmd())
	jobsCmd.AddCommand(jobsListCmd())
	jobsCmd.AddCommand(jobsShowCmd())
	jobsCmd.AddCommand(jobsCancelCmd())
	rootCmd.AddCommand(jobsCmd)

	labelexportCmd := &cobra.Command{Use: "labelexport", Short: "run the label export pipeline locally"}
	labelexportCmd.AddCommand(labelexportRunCmd())
	rootCmd.AddCommand(labelexportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func jobsSubmitCmd() *cobra.Command {
	var county, portalURL, parcelsPath, shapefilePath, ownerEmail string
	var crsCode int

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "submit a new scrape job",
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			fields := map[string]string{
				"county":      county,
				"portal_url":  portalURL,
				"crs_code":    strconv.Itoa(crsCode),
				"owner_email": ownerEmail,
			}
			for k, v := range fields {
				if v == "" {
					continue
				}
				if err := w.WriteField(k, v); err != nil {
					return err
				}
			}
			if err := attachFile(w, "parcels", parcelsPath); err != nil {
				return err
			}
			if shapefilePath != "" {
				if err := attachFile(w, "shapefile", shapefilePath); err != nil {
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}

			req, err := http.NewRequest(http.MethodPost, apiAddr+"/api/jobs", &buf)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", w.FormDataContentType())
			return doRequestAndPrint(req)
		},
	}
	cmd.Flags().StringVar(&county, "county", "", "county name")
	cmd.Flags().StringVar(&portalURL, "portal-url", "", "county assessor portal URL")
	cmd.Flags().IntVar(&crsCode, "crs", 4326, "target CRS EPSG code")
	cmd.Flags().StringVar(&parcelsPath, "parcels", "", "path to the parcel identifier list")
	cmd.Flags().StringVar(&shapefilePath, "shapefile", "", "path to the parcel shapefile bundle (zip)")
	cmd.Flags().StringVar(&ownerEmail, "owner-email", "", "submitter email")
	cmd.MarkFlagRequired("county")
	cmd.MarkFlagRequired("portal-url")
	cmd.MarkFlagRequired("parcels")
	return cmd
}

func jobsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := apiAddr + "/api/jobs"
			if status != "" {
				url += "?status=" + status
			}
			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			return doRequestAndPrint(req)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending/processing/completed/failed/cancelled)")
	return cmd
}

func jobsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [job-id]",
		Short: "show a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodGet, apiAddr+"/api/jobs/"+args[0], nil)
			if err != nil {
				return err
			}
			return doRequestAndPrint(req)
		},
	}
}

func jobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodPost, apiAddr+"/api/jobs/"+args[0]+"/cancel", nil)
			if err != nil {
				return err
			}
			return doRequestAndPrint(req)
		},
	}
}

// labelexportRunCmd exercises the Label Export Pipeline directly
// against local files, without a running daemon or queue — useful
// for validating a county's shapefile/spreadsheet pairing offline.
func labelexportRunCmd() *cobra.Command {
	var scrapedXLSX, shapefileZip, workDir string
	var sourceEPSG, targetEPSG int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the label export pipeline against local files (dry run, no publish)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				var err error
				workDir, err = os.MkdirTemp("", "parcelwalkctl-labelexport-*")
				if err != nil {
					return err
				}
			}
			pipeline := labelexport.NewPipeline(sourceEPSG)
			result, err := pipeline.Run(scrapedXLSX, shapefileZip, workDir, targetEPSG)
			if err != nil {
				return fmt.Errorf("label export pipeline: %w", err)
			}
			fmt.Printf("DXF written to %s\n", result.DXFPath)
			fmt.Printf("labels: %d  boundaries: %d\n", result.LabelCount, result.BoundaryCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&scrapedXLSX, "spreadsheet", "", "path to the scraped-records spreadsheet")
	cmd.Flags().StringVar(&shapefileZip, "shapefile", "", "path to the shapefile bundle (zip)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "scratch directory (default: a temp dir)")
	cmd.Flags().IntVar(&sourceEPSG, "source-crs", 4269, "the shapefile's own EPSG code")
	cmd.Flags().IntVar(&targetEPSG, "target-crs", 4326, "the CAD output's target EPSG code")
	cmd.MarkFlagRequired("spreadsheet")
	cmd.MarkFlagRequired("shapefile")
	return cmd
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fw, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

func doRequestAndPrint(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return nil
}
