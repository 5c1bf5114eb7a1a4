// fieldclockctl is the operator CLI for a running fieldclockd instance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/geofence"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:   "fieldclockctl",
		Short: "Control a running fieldclockd daemon",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "fieldclockd base URL")

	root.AddCommand(statusCmd(), locationCmd(), clockCmd(), dayCmd(), areasCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/healthz")
		},
	}
}

func locationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "location",
		Short: "Acquire the kiosk's current enhanced location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/location")
		},
	}
}

func clockCmd() *cobra.Command {
	var staffID, kind string
	var lat, lng, accuracy float64

	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Submit a clock event",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"staff_id": staffID,
				"kind":     kind,
			}
			if cmd.Flags().Changed("lat") {
				payload["reading"] = map[string]interface{}{
					"point":       map[string]float64{"lat": lat, "lng": lng},
					"accuracy_m":  accuracy,
					"captured_at": time.Now().Format(time.RFC3339),
				}
			}
			return postJSON("/api/clock", payload)
		},
	}

	cmd.Flags().StringVar(&staffID, "staff", "", "staff identifier")
	cmd.Flags().StringVar(&kind, "kind", "clock_in", "clock_in or clock_out")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of a client-supplied reading")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of a client-supplied reading")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 15, "accuracy in meters")
	_ = cmd.MarkFlagRequired("staff")
	return cmd
}

func dayCmd() *cobra.Command {
	var staffID, date string

	cmd := &cobra.Command{
		Use:   "day",
		Short: "Show a staff member's records and score for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/staff/%s/day", staffID)
			if date != "" {
				path += "?date=" + date
			}
			return getJSON(path)
		},
	}

	cmd.Flags().StringVar(&staffID, "staff", "", "staff identifier")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD), default today")
	_ = cmd.MarkFlagRequired("staff")
	return cmd
}

func areasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "Manage geofence areas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/areas/")
		},
	})

	var name, circle, polygon string
	var active bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an area from --circle lat,lng,radius or --polygon 'lat,lng;lat,lng;...'",
		RunE: func(cmd *cobra.Command, args []string) error {
			shape, err := parseShape(circle, polygon)
			if err != nil {
				return err
			}
			return postJSON("/api/areas/", &geofence.Area{
				Name:   name,
				Shape:  shape,
				Active: active,
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "area name")
	create.Flags().StringVar(&circle, "circle", "", "circle as lat,lng,radiusMeters")
	create.Flags().StringVar(&polygon, "polygon", "", "polygon vertices as lat,lng;lat,lng;...")
	create.Flags().BoolVar(&active, "active", true, "whether the area is active")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/areas/"+args[0], nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("delete failed: %s", resp.Status)
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	})

	return cmd
}

func parseShape(circle, polygon string) (geofence.Shape, error) {
	switch {
	case circle != "":
		parts := strings.Split(circle, ",")
		if len(parts) != 3 {
			return geofence.Shape{}, fmt.Errorf("circle must be lat,lng,radiusMeters")
		}
		lat, err1 := strconv.ParseFloat(parts[0], 64)
		lng, err2 := strconv.ParseFloat(parts[1], 64)
		radius, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return geofence.Shape{}, fmt.Errorf("invalid circle %q", circle)
		}
		return geofence.Shape{
			Kind:         geofence.ShapeCircle,
			Center:       geo.Point{Lat: lat, Lng: lng},
			RadiusMeters: radius,
		}, nil

	case polygon != "":
		var vertices []geo.Point
		for _, pair := range strings.Split(polygon, ";") {
			parts := strings.Split(strings.TrimSpace(pair), ",")
			if len(parts) != 2 {
				return geofence.Shape{}, fmt.Errorf("invalid vertex %q", pair)
			}
			lat, err1 := strconv.ParseFloat(parts[0], 64)
			lng, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 != nil || err2 != nil {
				return geofence.Shape{}, fmt.Errorf("invalid vertex %q", pair)
			}
			vertices = append(vertices, geo.Point{Lat: lat, Lng: lng})
		}
		return geofence.Shape{Kind: geofence.ShapePolygon, Vertices: vertices}, nil
	}

	return geofence.Shape{}, fmt.Errorf("one of --circle or --polygon is required")
}

func getJSON(path string) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func postJSON(path string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
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

	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return nil
}
