package source

// Fixed value pools for the mock templates. Names mix Thai and English with
// a 70% Thai weighting, matching the datasets this tool typically imports.

var thaiFirstNames = []string{
	"Somchai", "Somsak", "Sombat", "Prasert", "Suchart", "Wichai", "Narong",
	"Anan", "Thanawat", "Kittipong", "Siriporn", "Pornthip", "Wanida",
	"Sunisa", "Kanokwan", "Pimchanok", "Ratree", "Malee", "Nok", "Ploy",
}

var thaiLastNames = []string{
	"Jaidee", "Srisuwan", "Boonmee", "Chaiyasit", "Thongchai", "Rattanakorn",
	"Wongsa", "Phromma", "Saetang", "Kulap", "Intharachai", "Mongkhon",
}

var englishFirstNames = []string{
	"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Susan",
}

var englishLastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Wilson", "Anderson",
}

// positionTiers bound the salary range per position.
var positionTiers = []struct {
	Position  string
	MinSalary int
	MaxSalary int
}{
	{"Intern", 12000, 18000},
	{"Junior Staff", 18000, 28000},
	{"Staff", 25000, 40000},
	{"Senior Staff", 35000, 60000},
	{"Supervisor", 45000, 75000},
	{"Manager", 60000, 120000},
	{"Senior Manager", 90000, 180000},
	{"Director", 150000, 300000},
}

var departments = []string{
	"Production", "Quality Assurance", "Engineering", "Human Resources",
	"Finance", "Procurement", "Logistics", "Research and Development",
	"Information Technology", "Sales",
}

var educationLevels = []string{
	"High School", "Vocational Certificate", "Bachelor's Degree",
	"Master's Degree", "Doctorate",
}

var employeeStatuses = []string{"Active", "Active", "Active", "On Leave", "Resigned"}

var thaiProvinces = []string{
	"Bangkok", "Chiang Mai", "Chonburi", "Rayong", "Khon Kaen", "Phuket",
	"Nakhon Ratchasima", "Ayutthaya", "Samut Prakan", "Pathum Thani",
}

var products = []struct {
	Name     string
	Category string
	MinPrice float64
	MaxPrice float64
}{
	{"Brake Pad Set", "Brake System", 450, 2200},
	{"Oil Filter", "Engine Parts", 120, 480},
	{"Air Filter", "Engine Parts", 180, 650},
	{"Spark Plug", "Ignition", 90, 420},
	{"Radiator", "Cooling System", 1800, 8500},
	{"Alternator", "Electrical", 2500, 12000},
	{"Fuel Pump", "Fuel System", 1400, 7200},
	{"Shock Absorber", "Suspension", 950, 4800},
	{"Timing Belt", "Engine Parts", 350, 1600},
	{"Wiper Blade", "Accessories", 80, 350},
}

var customerCompanies = []string{
	"Siam Motors Co., Ltd.", "Thai Auto Parts Ltd.", "Bangkok Industrial Supply",
	"Eastern Seaboard Trading", "Northern Machinery Co.", "Pacific Components",
	"Golden Gear Ltd.", "Summit Auto Group", "Metro Parts Center",
	"Asia Drive Systems",
}

var salesRegions = []string{"Central", "North", "Northeast", "East", "South", "West"}

var paymentMethods = []string{"Bank Transfer", "Credit Card", "Cash", "Cheque", "Credit Terms"}

var paymentStatuses = []string{"Paid", "Paid", "Pending", "Overdue"}

var deliveryStatuses = []string{"Delivered", "Delivered", "In Transit", "Preparing", "Delayed"}

var orderPriorities = []string{"Normal", "Normal", "Normal", "High", "Urgent"}

var suppliers = []string{
	"Denso Supply Co.", "Aisin Trading", "NGK Thailand", "Bosch Distribution",
	"Hitachi Parts Ltd.", "Valeo Siam",
}

var warehouses = []string{"WH-BKK-01", "WH-BKK-02", "WH-RAY-01", "WH-CNX-01", "WH-KKN-01"}

var qualityGrades = []string{"A", "A", "A", "B", "C"}

var accountTypes = []string{"Asset", "Liability", "Equity", "Revenue", "Expense"}

var financialTransactionTypes = []struct {
	Type      string
	MinAmount float64
	MaxAmount float64
}{
	{"Invoice Payment", 5000, 500000},
	{"Purchase Order", 10000, 1200000},
	{"Payroll", 200000, 3000000},
	{"Utility Payment", 8000, 150000},
	{"Tax Payment", 50000, 2000000},
	{"Refund", 500, 80000},
}

var approvalStatuses = []string{"Approved", "Approved", "Approved", "Pending", "Rejected"}

var costCenters = []string{"CC-100", "CC-200", "CC-300", "CC-400", "CC-500"}

var taxCodes = []string{"VAT7", "VAT0", "WHT3", "WHT5", "EXEMPT"}
