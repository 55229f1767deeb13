package channel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"floroexpress/internal/domain"
)

// Canned values the simulated server answers with.
const (
	RiderID           = "R-2023-12345"
	RiderName         = "Arnel Santos"
	ShopEstimatedTime = "30 minutes"

	deliveryConfirmedMessage = "Delivery confirmed successfully"
	noShopsMessage           = "No printer shops available near your location"
	statusProcessing         = "Processing"
)

// AIImprovements are the improvements reported for every uploaded document.
var AIImprovements = []string{"Corrected spelling", "Adjusted margins"}

// simState is what the simulated server remembers about the current job.
type simState struct {
	jobID          string
	fileName       string
	shopID         string
	printStatus    string
	progress       int
	deliveryID     string
	deliveryStatus string
	printETA       *time.Time
}

func newSimState() simState {
	return simState{
		printStatus:    domain.PrintStatusPending,
		deliveryStatus: domain.DeliveryStatusPending,
	}
}

// respondLocked mutates the simulated server state for a request and
// returns the delayed response chain.
func (c *Channel) respondLocked(payload domain.Payload) []step {
	s := c.settings

	switch p := payload.(type) {
	case domain.Login:
		return []step{{delay: s.LoginAck, run: c.publishing(domain.UsersUpdate{
			Users: []domain.UserSummary{
				{ID: 1, Role: string(domain.RoleUser)},
				{ID: 2, Role: string(domain.RolePrinter)},
				{ID: 3, Role: "rider"},
			},
		})}}

	case domain.DocumentUploaded:
		c.sim.jobID = c.newID("JOB")
		c.sim.fileName = p.FileName
		c.sim.printStatus = domain.PrintStatusPending
		c.sim.progress = 0
		created := domain.PrintJobCreated{JobID: c.sim.jobID, UserID: c.session.UserID, FileName: p.FileName}
		complete := domain.AIProcessComplete{
			DocumentID:   p.DocumentID,
			Improvements: append([]string(nil), AIImprovements...),
		}
		return []step{{delay: s.AIProcess, run: c.publishing(complete, created)}}

	case domain.DeliveryDetailsSubmitted:
		c.sim.deliveryID = p.Details.DeliveryID
		if c.sim.deliveryID == "" {
			c.sim.deliveryID = c.newID("DEL")
		}
		c.sim.deliveryStatus = domain.DeliveryStatusPending
		return []step{{delay: s.DeliveryAck, run: c.publishing(domain.DeliveryDetailsConfirmed{
			Success:    true,
			DeliveryID: c.sim.deliveryID,
		})}}

	case domain.FindPrinterShop:
		qr := domain.QRCodeGenerated{QRCode: c.newID("QR_")}
		return []step{
			{delay: s.ShopSearch, run: func(ctx context.Context) bool { return c.answerShopSearch(ctx, p) }},
			{delay: s.QRCode, run: c.publishing(qr)},
		}

	case domain.ConfirmPrinterShop:
		c.sim.shopID = p.ShopID
		if p.JobID != "" {
			c.sim.jobID = p.JobID
		}
		if c.sim.jobID == "" {
			c.sim.jobID = c.newID("JOB")
		}
		c.sim.printStatus = domain.PrintStatusConfirmed
		return []step{
			{delay: s.ShopConfirm, run: c.startPrinting(p.ShopID)},
			{delay: s.PrintDuration, run: c.finishPrinting},
			{delay: s.RiderDispatch, run: c.dispatchRider},
		}

	case domain.ConfirmDelivery:
		c.sim.deliveryStatus = domain.DeliveryStatusCompleted
		return []step{{delay: s.DeliveryConfirm, run: c.publishing(domain.DeliveryConfirmationResponse{
			Success: true,
			Message: deliveryConfirmedMessage,
		})}}

	case domain.PrintStatusRequest:
		return []step{{run: func(context.Context) bool {
			c.publish(c.printJobUpdate())
			return true
		}}}

	case domain.DeliveryStatusRequest:
		return []step{{run: func(context.Context) bool {
			c.mu.Lock()
			update := domain.DeliveryUpdate{DeliveryID: c.sim.deliveryID, Status: c.sim.deliveryStatus}
			c.mu.Unlock()
			c.publish(update)
			return true
		}}}
	}

	return nil
}

// publishing returns a step body that publishes payloads in order.
func (c *Channel) publishing(payloads ...domain.Payload) func(context.Context) bool {
	return func(context.Context) bool {
		for _, p := range payloads {
			if !c.publish(p) {
				return false
			}
		}
		return true
	}
}

func (c *Channel) answerShopSearch(ctx context.Context, req domain.FindPrinterShop) bool {
	if c.shops == nil {
		c.publish(domain.ErrorMessage{Message: noShopsMessage})
		return false
	}

	result, err := c.shops.Nearest(ctx, req.Location, 1)
	if err != nil || len(result.Matches) == 0 {
		if err != nil {
			c.logger.Warn("shop search failed", zap.Error(err))
		}
		c.publish(domain.ErrorMessage{Message: noShopsMessage})
		return false
	}

	best := result.Matches[0]
	return c.publish(domain.PrinterShopFound{
		Shop:       best.Shop,
		DistanceKm: best.DistanceKm,
		Warning:    result.Warning,
	})
}

func (c *Channel) startPrinting(shopID string) func(context.Context) bool {
	return func(context.Context) bool {
		if !c.publish(domain.PrintJobStatusUpdate{
			Status:        domain.PrintStatusConfirmed,
			ShopID:        shopID,
			EstimatedTime: ShopEstimatedTime,
		}) {
			return false
		}

		c.mu.Lock()
		c.sim.printStatus = domain.PrintStatusPrinting
		c.sim.progress = 0
		eta := c.now().Add(c.settings.PrintDuration).UTC()
		c.sim.printETA = &eta
		c.mu.Unlock()

		return c.publish(c.printJobUpdate())
	}
}

func (c *Channel) finishPrinting(context.Context) bool {
	c.mu.Lock()
	c.sim.printStatus = domain.PrintStatusCompleted
	c.sim.progress = 100
	c.sim.printETA = nil
	c.mu.Unlock()

	return c.publish(c.printJobUpdate())
}

func (c *Channel) dispatchRider(ctx context.Context) bool {
	c.mu.Lock()
	c.sim.deliveryStatus = domain.DeliveryStatusReady
	update := domain.DeliveryUpdate{
		DeliveryID: c.sim.deliveryID,
		Status:     domain.DeliveryStatusReady,
		Details:    "Rider assigned",
	}
	c.mu.Unlock()

	return c.publishing(domain.RiderAssigned{RiderID: RiderID, RiderName: RiderName}, update)(ctx)
}

// printJobUpdate snapshots the simulated job.
func (c *Channel) printJobUpdate() domain.PrintJobUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.PrintJobUpdate{
		JobID:               c.sim.jobID,
		Status:              c.sim.printStatus,
		Progress:            c.sim.progress,
		EstimatedCompletion: c.sim.printETA,
	}
}

// tickStatus is the recurring processing heartbeat. While printing it also
// advances the simulated progress.
func (c *Channel) tickStatus() {
	c.mu.Lock()
	if c.sim.printStatus == domain.PrintStatusPrinting && c.sim.progress < 90 {
		c.sim.progress += 10
	}
	update := domain.StatusUpdate{
		Status:    statusProcessing,
		Progress:  c.sim.progress,
		Timestamp: c.now().UTC(),
	}
	c.mu.Unlock()

	c.publish(update)
}

// tickPrintJobs broadcasts the current job list to user sessions.
func (c *Channel) tickPrintJobs() {
	c.mu.Lock()
	if c.sim.jobID == "" {
		c.mu.Unlock()
		return
	}
	job := domain.PrintJobUpdate{
		JobID:               c.sim.jobID,
		Status:              c.sim.printStatus,
		Progress:            c.sim.progress,
		EstimatedCompletion: c.sim.printETA,
	}
	c.mu.Unlock()

	c.publish(domain.PrintJobsUpdate{Jobs: []domain.PrintJobUpdate{job}})
}
