// Package client is the Biosec Go SDK for the threat-intelligence API served
// by biosecd under /api/v1.
//
// # Submitting and reading threats
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t, err := c.SubmitThreat(ctx, threat.Input{
//	    Title:       "Unauthorized PCR protocol change",
//	    Description: "Cycling parameters modified outside change control",
//	    Date:        "2024-03-01",
//	    Source:      "Lab Manager",
//	})
//	fmt.Println(t.ID, t.Risk())
//
// Submission runs all three analysis layers on the server; the returned
// threat is already analyzed. Bulk-generated threats start unanalyzed and
// are analyzed on demand:
//
//	created, _ := c.GenerateThreats(ctx, 10, false)
//	analyzed, _ := c.AnalyzeThreat(ctx, created[0].ID)
//
// # Dashboard data
//
//	summary, _ := c.Insights(ctx)
//	points, _ := c.Trend(ctx, 7)
//	advice, _ := c.Recommendation(ctx)
//
// # Errors
//
// Non-2xx responses are returned as *APIError carrying the status code and
// the server's error message. IsNotFound and IsConflict test for the common
// cases:
//
//	if _, err := c.AnalyzeThreat(ctx, id); client.IsConflict(err) {
//	    // already analyzed or analysis in progress
//	}
package client
