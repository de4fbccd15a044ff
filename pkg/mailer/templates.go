package mailer

import "html/template"

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Live Mart - Order Confirmation</h2>
  <p>Thank you for your order!</p>
  <p><strong>Order ID:</strong> #{{.OrderID}}</p>
  <p><strong>Total Amount:</strong> {{.TotalAmount}}</p>
  <p><strong>Payment Status:</strong> {{.PaymentStatus}}</p>
  <p><strong>Tracking Number:</strong> {{if .TrackingNumber}}{{.TrackingNumber}}{{else}}N/A{{end}}</p>
  {{with .ScheduledDate}}<p><strong>Scheduled Date:</strong> {{.}}</p>{{end}}
  <p>We'll keep you updated on your order status.</p>
</div>`))

var deliveryConfirmationTmpl = template.Must(template.New("delivery_confirmation").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Live Mart - Delivery Confirmation</h2>
  <p>Great news! Your order has been delivered.</p>
  <p><strong>Order ID:</strong> #{{.OrderID}}</p>
  {{with .DeliveredAt}}<p><strong>Delivered At:</strong> {{.}}</p>{{end}}
  <p>Thank you for shopping with Live Mart!</p>
</div>`))

var restockTmpl = template.Must(template.New("restock").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Live Mart - Back in stock</h2>
  <p><strong>{{.ProductName}}</strong> is available again at {{.Price}}.</p>
  <p>Only {{.Stock}} left, order soon.</p>
</div>`))
