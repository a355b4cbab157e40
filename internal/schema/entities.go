package schema

// The five logistics entities. Worksheet names match the tabs in the source
// spreadsheet; table names follow the bronze_/silver_ prefix convention of
// the warehouse.

func init() {
	register(Entity{
		Name:        "drivers",
		Worksheet:   "Drivers",
		BronzeTable: "bronze_drivers",
		SilverTable: "silver_drivers",
		PrimaryKey:  []string{"driver_id"},
		Columns: []Column{
			{Name: "driver_id", Type: Text},
			{Name: "name", Type: Text},
			{Name: "phone", Type: Text, Role: RolePhone},
			{Name: "license_number", Type: Text},
			{Name: "status", Type: Text},
		},
	})

	register(Entity{
		Name:        "customers",
		Worksheet:   "Customers",
		BronzeTable: "bronze_customers",
		SilverTable: "silver_customers",
		PrimaryKey:  []string{"customer_id"},
		Columns: []Column{
			{Name: "customer_id", Type: Text},
			{Name: "name", Type: Text},
			{Name: "email", Type: Text, Role: RoleEmail},
			{Name: "phone", Type: Text, Role: RolePhone},
			{Name: "city", Type: Text},
		},
	})

	register(Entity{
		Name:        "vehicles",
		Worksheet:   "Vehicles",
		BronzeTable: "bronze_vehicles",
		SilverTable: "silver_vehicles",
		PrimaryKey:  []string{"vehicle_id"},
		Columns: []Column{
			{Name: "vehicle_id", Type: Text},
			{Name: "plate_number", Type: Text},
			{Name: "model", Type: Text},
			{Name: "capacity_kg", Type: Integer},
		},
	})

	register(Entity{
		Name:        "shipments",
		Worksheet:   "Shipments",
		BronzeTable: "bronze_shipments",
		SilverTable: "silver_shipments",
		PrimaryKey:  []string{"shipment_id"},
		Columns: []Column{
			{Name: "shipment_id", Type: Text},
			{Name: "order_id", Type: Text},
			{Name: "vehicle_id", Type: Text},
			{Name: "driver_id", Type: Text},
			{Name: "ship_date", Type: Timestamp, Role: RoleDate},
			{Name: "delivery_date", Type: Timestamp, Role: RoleDate},
			{Name: "weight_kg", Type: Numeric},
		},
	})

	register(Entity{
		Name:        "orders",
		Worksheet:   "Orders",
		BronzeTable: "bronze_orders",
		SilverTable: "silver_orders",
		PrimaryKey:  []string{"order_id"},
		Columns: []Column{
			{Name: "order_id", Type: Text},
			{Name: "customer_id", Type: Text},
			{Name: "order_date", Type: Timestamp, Role: RoleDate},
			{Name: "amount", Type: Numeric},
			{Name: "status", Type: Text},
		},
	})
}
